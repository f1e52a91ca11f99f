package fetch

import (
	"encoding/base64"
	"net/url"
	"strings"

	"github.com/matzehuels/overlay/pkg/errors"
)

// decodeDataURI decodes "data:[<mediatype>][;base64],<data>".
func decodeDataURI(ref string, limit int64) ([]byte, string, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(ref, "data:"), ",")
	if !ok {
		return nil, "", errors.New(errors.ErrCodeInvalidInput, "data uri: missing ','")
	}

	isBase64 := false
	if m, found := strings.CutSuffix(meta, ";base64"); found {
		meta, isBase64 = m, true
	}

	// Cheap upper bound before decoding.
	if est := int64(len(payload)); (isBase64 && est/4*3 > limit+2) || (!isBase64 && est > 3*limit) {
		return nil, "", errors.SizeLimit("source bytes", est, limit)
	}

	var data []byte
	if isBase64 {
		var err error
		data, err = base64.StdEncoding.DecodeString(payload)
		if err != nil {
			// Some producers omit the padding.
			data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		}
		if err != nil {
			return nil, "", errors.Wrap(errors.ErrCodeDecode, err, "data uri")
		}
	} else {
		s, err := url.PathUnescape(payload)
		if err != nil {
			return nil, "", errors.Wrap(errors.ErrCodeDecode, err, "data uri")
		}
		data = []byte(s)
	}
	if int64(len(data)) > limit {
		return nil, "", errors.SizeLimit("source bytes", int64(len(data)), limit)
	}
	return data, meta, nil
}
