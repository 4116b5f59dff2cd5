package audio

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// MIMETypeWAV is the media type used for encoded meditation audio
const MIMETypeWAV = "audio/wav"

// DataURI encodes data as a base64 data URI with the given media type
func DataURI(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// ParseDataURI decodes a base64 data URI and returns its media type and payload.
// Parameters between the media type and ";base64" (e.g. "rate=24000") are kept
// in the returned media type.
func ParseDataURI(uri string) (string, []byte, error) {
	if !strings.HasPrefix(uri, "data:") {
		return "", nil, fmt.Errorf("not a data URI")
	}

	comma := strings.IndexByte(uri, ',')
	if comma < 0 {
		return "", nil, fmt.Errorf("malformed data URI: missing ','")
	}

	meta := uri[len("data:"):comma]
	if !strings.HasSuffix(meta, ";base64") {
		return "", nil, fmt.Errorf("unsupported data URI encoding: only base64 is supported")
	}

	payload, err := base64.StdEncoding.DecodeString(uri[comma+1:])
	if err != nil {
		return "", nil, fmt.Errorf("failed to decode data URI payload: %w", err)
	}

	return strings.TrimSuffix(meta, ";base64"), payload, nil
}

// WAVDataURI converts raw PCM into a playable "data:audio/wav;base64,..." URI
func WAVDataURI(pcm []byte, f Format) (string, error) {
	wav, err := EncodeWAV(pcm, f)
	if err != nil {
		return "", err
	}
	return DataURI(MIMETypeWAV, wav), nil
}
