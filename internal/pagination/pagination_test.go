package pagination

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testToken struct {
	AfterID uint64 `json:"after_id"`
}

func (t *testToken) Validate() error {
	if t.AfterID == 0 {
		return errors.New("after_id is required")
	}
	return nil
}

func TestToToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		msg     any
		wantErr bool
	}{
		{
			name:    "valid message",
			msg:     &testToken{AfterID: 42},
			wantErr: false,
		},
		{
			name:    "invalid message missing required field",
			msg:     &testToken{},
			wantErr: true,
		},
		{
			name:    "unencodable message",
			msg:     map[string]any{"ch": make(chan int)},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tkn, err := ToToken(tt.msg)
			if tt.wantErr {
				var tokenErr TokenError
				require.ErrorAs(t, err, &tokenErr)
				assert.Empty(t, tkn)
			} else {
				require.NoError(t, err)
				assert.NotEmpty(t, tkn)
			}
		})
	}
}

func TestFromToken(t *testing.T) {
	t.Parallel()

	validMsg := &testToken{AfterID: 42}
	validToken, err := ToToken(validMsg)
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{
			name:    "valid token",
			token:   validToken,
			wantErr: false,
		},
		{
			name:    "empty token",
			token:   "",
			wantErr: true,
		},
		{
			name:    "invalid base64",
			token:   "not-valid-base64!!!",
			wantErr: true,
		},
		{
			name:    "valid base64 invalid json",
			token:   tokenEncoding.EncodeToString([]byte("not json")),
			wantErr: true,
		},
		{
			name:    "unknown field",
			token:   tokenEncoding.EncodeToString([]byte(`{"after_id":1,"extra":true}`)),
			wantErr: true,
		},
		{
			name:    "valid json fails validation",
			token:   tokenEncoding.EncodeToString([]byte(`{"after_id":0}`)),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out := &testToken{}
			err := FromToken(tt.token, out)
			if tt.wantErr {
				var tokenErr TokenError
				require.ErrorAs(t, err, &tokenErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, validMsg, out)
			}
		})
	}
}

func TestTokenErrorMessage(t *testing.T) {
	t.Parallel()

	err := TokenError{cause: errors.New("underlying cause")}
	assert.Equal(t, "invalid pagination token", err.Error())
	assert.EqualError(t, errors.Unwrap(err), "underlying cause")
}
