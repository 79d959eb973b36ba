package paramstore

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/stretchr/testify/require"

	"github.com/sbu-europe/fintalk/internal/domain"
)

type fakeAPI struct {
	getOut *ssm.GetParameterOutput
	getErr error
}

func (f *fakeAPI) GetParameter(_ context.Context, _ *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	return f.getOut, f.getErr
}

func strPtr(s string) *string { return &s }

func TestGetParameter_HappyPath(t *testing.T) {
	api := &fakeAPI{getOut: &ssm.GetParameterOutput{Parameter: &types.Parameter{
		Name: strPtr("p"), Value: strPtr(`{"k":"v"}`),
	}}}
	client, err := New(api)
	require.NoError(t, err)
	v, err := client.GetParameter(context.Background(), "p")
	require.NoError(t, err)
	require.Equal(t, `{"k":"v"}`, v)
}

func TestGetParameter_HappyPath_SecureString(t *testing.T) {
	typeStr := "SecureString"
	api := &fakeAPI{getOut: &ssm.GetParameterOutput{Parameter: &types.Parameter{
		Name: strPtr("p"), Value: strPtr(`{"k":"v"}`), Type: types.ParameterType(typeStr),
	}}}
	client, err := New(api)
	require.NoError(t, err)
	v, err := client.GetParameter(context.Background(), "p")
	require.NoError(t, err)
	require.Equal(t, `{"k":"v"}`, v)
}

func TestGetParameter_MissingValue(t *testing.T) {
	api := &fakeAPI{getOut: &ssm.GetParameterOutput{Parameter: &types.Parameter{Name: strPtr("p"), Value: nil}}}
	client, err := New(api)
	require.NoError(t, err)
	_, err = client.GetParameter(context.Background(), "p")
	require.Error(t, err)
	require.Contains(t, err.Error(), "missing value")
}

func TestGetParameter_ApiError(t *testing.T) {
	api := &fakeAPI{getErr: errors.New("boom")}
	client, err := New(api)
	require.NoError(t, err)
	_, err = client.GetParameter(context.Background(), "p")
	require.Error(t, err)
	require.ErrorContains(t, err, "boom")
}

func TestGetParameter_ClassifiesErrors(t *testing.T) {
	cases := []struct {
		name        string
		err         error
		unavailable bool
	}{
		{name: "throttled", err: &smithy.GenericAPIError{Code: "ThrottlingException"}, unavailable: true},
		{name: "server error", err: &smithy.GenericAPIError{Code: "InternalServerError"}, unavailable: true},
		{name: "send failure", err: &smithyhttp.RequestSendError{Err: errors.New("dial tcp")}, unavailable: true},
		{name: "not found", err: &types.ParameterNotFound{}},
		{name: "plain", err: errors.New("boom")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client, err := New(&fakeAPI{getErr: tc.err})
			require.NoError(t, err)
			_, err = client.GetParameter(context.Background(), "/fintalk/api-token")
			require.Error(t, err)
			require.Contains(t, err.Error(), `"/fintalk/api-token"`)
			require.Equal(t, tc.unavailable, errors.Is(err, domain.ErrServiceUnavailable))
		})
	}
}

func TestGetParameter_ClientNotInitialized(t *testing.T) {
	_, err := (&Client{}).GetParameter(context.Background(), "p")
	require.Error(t, err)
	require.Contains(t, err.Error(), "not initialized")
}

func TestGetParameter_EmptyName(t *testing.T) {
	api := &fakeAPI{}
	client, err := New(api)
	require.NoError(t, err)
	_, err = client.GetParameter(context.Background(), "  ")
	require.Error(t, err)
	require.Contains(t, err.Error(), "required")
}

func TestNew_NilAPI(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "must not be nil")
}

// ---------------------------------------------------------------------------
// TokenSource
// ---------------------------------------------------------------------------

type fakeGetter struct {
	val  string
	err  error
	name string
}

func (f *fakeGetter) GetParameter(_ context.Context, name string) (string, error) {
	f.name = name
	return f.val, f.err
}

func TestTokenSource(t *testing.T) {
	cases := []struct {
		name    string
		value   string
		want    string
		wantErr string
	}{
		{name: "json", value: `{"token":"sk-abc"}`, want: "sk-abc"},
		{name: "bare", value: " sk-bare \n", want: "sk-bare"},
		{name: "json missing key", value: `{"other":"x"}`, wantErr: "empty token"},
		{name: "invalid json", value: `{not-json`, wantErr: "invalid JSON"},
		{name: "empty", value: "   ", wantErr: "empty token"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := &fakeGetter{val: tc.value}
			src, err := NewTokenSource(g, " /fintalk/openai ")
			require.NoError(t, err)

			got, err := src.Token(context.Background())
			require.Equal(t, "/fintalk/openai", g.name)
			if tc.wantErr != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestTokenSource_GetterError(t *testing.T) {
	src, err := NewTokenSource(&fakeGetter{err: errors.New("access denied")}, "p")
	require.NoError(t, err)
	_, err = src.Token(context.Background())
	require.ErrorContains(t, err, "access denied")
}

func TestNewTokenSource_Validation(t *testing.T) {
	_, err := NewTokenSource(nil, "p")
	require.Error(t, err)
	_, err = NewTokenSource(&fakeGetter{}, " ")
	require.Error(t, err)
}
