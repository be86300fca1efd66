package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifier_Verify(t *testing.T) {
	body := []byte(`{"event":"payment.succeeded","object":{"id":"pay_1"}}`)
	v := NewVerifier("whsec")
	sig := v.Sign(body)

	tests := []struct {
		name    string
		v       *Verifier
		body    []byte
		sig     string
		wantErr bool
	}{
		{name: "valid", v: v, body: body, sig: sig},
		{name: "valid_with_prefix", v: v, body: body, sig: "sha256=" + sig},
		{name: "tampered_body", v: v, body: append([]byte(nil), append(body, ' ')...), sig: sig, wantErr: true},
		{name: "wrong_secret", v: NewVerifier("other"), body: body, sig: sig, wantErr: true},
		{name: "empty_signature", v: v, body: body, sig: "", wantErr: true},
		{name: "not_hex", v: v, body: body, sig: "zz-not-hex", wantErr: true},
		{name: "empty_secret_fails_closed", v: NewVerifier(""), body: body, sig: NewVerifier("").Sign(body), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.v.Verify(tt.body, tt.sig)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidSignature)
				return
			}
			assert.NoError(t, err)
		})
	}
}
