package blob

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCleanKey(t *testing.T) {
	tests := map[string]struct {
		key      string
		expected string
		err      error
	}{
		`simple`:          {key: "family/media.jpg", expected: "family/media.jpg"},
		`redundant_parts`: {key: "family/./a/../media.jpg", expected: "family/media.jpg"},
		`empty`:           {key: "", err: ErrInvalidKey},
		`absolute`:        {key: "/etc/passwd", err: ErrInvalidKey},
		`escapes_root`:    {key: "../secret", err: ErrInvalidKey},
		`escapes_nested`:  {key: "family/../../secret", err: ErrInvalidKey},
		`backslash`:       {key: `family\..\secret`, err: ErrInvalidKey},
		`dot`:             {key: ".", err: ErrInvalidKey},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := CleanKey(tc.key)
			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.expected, got)
		})
	}
}
