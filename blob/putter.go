package blob

import (
	"fmt"

	"github.com/relloyd/freshpipe/aws/s3"
	"github.com/relloyd/freshpipe/config"
	"github.com/relloyd/freshpipe/constants"
)

// NewPutter returns the Putter for the configured sink type.
func NewPutter(s config.Sink) (Putter, error) {
	switch s.Type {
	case constants.SinkTypeAzure:
		return NewAzurePutter(s.Account, s.Container, s.SasToken, s.Prefix)
	case constants.SinkTypeS3:
		b, err := s3.ParseDSN(s.Container, s.Region)
		if err != nil {
			return nil, err
		}
		prefix := b.Prefix
		if s.Prefix != "" {
			prefix = joinPrefix(prefix, s.Prefix)
		}
		return s3.NewBasicClient(b.Name, b.Region, prefix), nil
	case constants.SinkTypeLocal:
		return NewLocalPutter(s.Directory), nil
	default:
		return nil, fmt.Errorf("unsupported sink type %q", s.Type)
	}
}

func joinPrefix(a, b string) string {
	if a == "" {
		return b
	}
	return a + "/" + b
}
