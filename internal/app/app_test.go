package app

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/require"

	"github.com/sbu-europe/fintalk/internal/config"
	"github.com/sbu-europe/fintalk/internal/integrations/bedrock"
	"github.com/sbu-europe/fintalk/internal/integrations/openai"
)

type fakeParams struct {
	values map[string]string
	err    error
	asked  []string
}

func (f *fakeParams) GetParameter(_ context.Context, name string) (string, error) {
	f.asked = append(f.asked, name)
	if f.err != nil {
		return "", f.err
	}
	v, ok := f.values[name]
	if !ok {
		return "", errors.New("parameter not found")
	}
	return v, nil
}

func TestResolveAPIToken(t *testing.T) {
	cases := []struct {
		name    string
		cfg     config.Config
		params  *fakeParams
		want    string
		wantErr bool
	}{
		{
			name: "environment wins",
			cfg:  config.Config{APIToken: "env-token", ParamPrefix: "/fintalk"},
			want: "env-token",
		},
		{
			name:   "parameter as JSON",
			cfg:    config.Config{ParamPrefix: "/fintalk"},
			params: &fakeParams{values: map[string]string{"/fintalk/api-token": `{"token":"ssm-token"}`}},
			want:   "ssm-token",
		},
		{
			name:   "bare parameter",
			cfg:    config.Config{ParamPrefix: "/fintalk"},
			params: &fakeParams{values: map[string]string{"/fintalk/api-token": "plain"}},
			want:   "plain",
		},
		{
			name: "nothing configured disables auth",
			cfg:  config.Config{},
			want: "",
		},
		{
			name:    "unreadable parameter fails",
			cfg:     config.Config{ParamPrefix: "/fintalk"},
			params:  &fakeParams{err: errors.New("AccessDenied")},
			wantErr: true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := tc.cfg
			var got string
			var err error
			if tc.params != nil {
				got, err = ResolveAPIToken(context.Background(), &cfg, tc.params)
			} else {
				got, err = ResolveAPIToken(context.Background(), &cfg, nil)
			}
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestOpenAITokens(t *testing.T) {
	t.Run("static key", func(t *testing.T) {
		src, err := OpenAITokens(&config.Config{OpenAIAPIKey: "sk-test"}, nil)
		require.NoError(t, err)
		tok, err := src.Token(context.Background())
		require.NoError(t, err)
		require.Equal(t, "sk-test", tok)
	})

	t.Run("parameter store", func(t *testing.T) {
		params := &fakeParams{values: map[string]string{"/fintalk/open-ai-token": `{"token":"sk-ssm"}`}}
		src, err := OpenAITokens(&config.Config{ParamPrefix: "/fintalk"}, params)
		require.NoError(t, err)
		tok, err := src.Token(context.Background())
		require.NoError(t, err)
		require.Equal(t, "sk-ssm", tok)
		require.Equal(t, []string{"/fintalk/open-ai-token"}, params.asked)
	})

	t.Run("no source", func(t *testing.T) {
		_, err := OpenAITokens(&config.Config{}, nil)
		require.Error(t, err)
	})
}

func TestNewLLM_SelectsProvider(t *testing.T) {
	awsCfg := aws.Config{Region: "us-east-1"}

	llm, err := NewLLM(&config.Config{LLMProvider: config.ProviderBedrock, BedrockModel: "amazon.nova-pro-v1:0", EmbeddingDim: 1024}, awsCfg, nil)
	require.NoError(t, err)
	client, ok := llm.(*bedrock.Client)
	require.True(t, ok)
	require.Equal(t, "amazon.nova-pro-v1:0", client.ModelID())

	llm, err = NewLLM(&config.Config{LLMProvider: config.ProviderOpenAI, OpenAIAPIKey: "sk-test", OpenAIModel: "gpt-4o-mini"}, awsCfg, nil)
	require.NoError(t, err)
	_, ok = llm.(*openai.Client)
	require.True(t, ok)

	_, err = NewLLM(&config.Config{LLMProvider: config.ProviderOpenAI}, awsCfg, nil)
	require.Error(t, err)
}

func TestModelID(t *testing.T) {
	require.Equal(t, "amazon.nova-lite-v1:0", modelID(&config.Config{LLMProvider: config.ProviderBedrock, BedrockModel: "amazon.nova-lite-v1:0"}))
	require.Equal(t, "gpt-4o-mini", modelID(&config.Config{LLMProvider: config.ProviderOpenAI, OpenAIModel: "gpt-4o-mini"}))
}
