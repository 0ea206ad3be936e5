package storage

import (
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/input-output-hk/catalyst-forge-libs/fs/billy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTimeoutResolution(t *testing.T) {
	// A fixed aws.Config keeps New away from the default credential chain.
	cfg := &aws.Config{Region: "us-east-1"}

	tests := []struct {
		name string
		opts []Option
		want time.Duration
	}{
		{
			name: "no timeout configured falls back to the default",
			opts: nil,
			want: DefaultTimeout,
		},
		{
			name: "explicit timeout is honored",
			opts: []Option{WithTimeout(30 * time.Second)},
			want: 30 * time.Second,
		},
		{
			name: "zero timeout is normalized to the default",
			opts: []Option{WithTimeout(0)},
			want: DefaultTimeout,
		},
		{
			name: "negative timeout is normalized to the default",
			opts: []Option{WithTimeout(-time.Second)},
			want: DefaultTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := append([]Option{
				WithAWSConfig(cfg),
				WithFilesystem(billy.NewInMemoryFS()),
			}, tt.opts...)

			client, err := New(opts...)

			require.NoError(t, err)
			assert.Equal(t, tt.want, client.Timeout())
		})
	}
}
