package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/viant/afs"
)

// LoadStatic parses trusted clients from an inline JSON list or, when inline is
// empty, from the document at URL.
func LoadStatic(ctx context.Context, inline, URL string) ([]*Registration, error) {
	var data []byte
	switch {
	case strings.TrimSpace(inline) != "":
		data = []byte(inline)
	case URL != "":
		var err error
		if data, err = afs.New().DownloadWithURL(ctx, URL); err != nil {
			return nil, fmt.Errorf("registry: read static clients %s: %w", URL, err)
		}
	default:
		return nil, nil
	}
	var ret []*Registration
	if err := json.Unmarshal(data, &ret); err != nil {
		return nil, fmt.Errorf("registry: decode static clients: %w", err)
	}
	return ret, nil
}
