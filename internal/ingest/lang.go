package ingest

import "github.com/abadojack/whatlanggo"

// DetectLanguage names the dominant language of text, or "unknown" when the
// detection is not reliable.
func DetectLanguage(text string) string {
	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return "unknown"
	}
	return info.Lang.String()
}
