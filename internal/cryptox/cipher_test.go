package cryptox

import (
	"testing"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	key := common.GenerateRandByteArray(KeySize)

	testCases := [][]byte{
		[]byte("Hello, World!"),
		[]byte("grüße, wörld 🌍"),
		[]byte(`{"username": "alice", "password": "secret123"}`),
		common.GenerateRandByteArray(1024),
		{},
	}

	for _, plaintext := range testCases {
		f, err := Encrypt(plaintext, key, []byte("aad"))
		require.NoError(t, err)
		assert.Len(t, f.IV, IVSize)
		assert.Len(t, f.AuthTag, TagSize)
		assert.Equal(t, Fingerprint(key), f.KeyFingerprint)

		got, err := Decrypt(f, key, []byte("aad"))
		require.NoError(t, err)
		assert.Equal(t, string(plaintext), string(got))
	}
}

func TestEncrypt_FreshIV(t *testing.T) {
	key := common.GenerateRandByteArray(KeySize)

	f1, err := Encrypt([]byte("same data"), key, nil)
	require.NoError(t, err)
	f2, err := Encrypt([]byte("same data"), key, nil)
	require.NoError(t, err)

	assert.NotEqual(t, f1.IV, f2.IV)
	assert.NotEqual(t, f1.Ciphertext, f2.Ciphertext)
}

func TestEncrypt_BadKey(t *testing.T) {
	_, err := Encrypt([]byte("x"), make([]byte, 16), nil)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestDecrypt_TamperDetection(t *testing.T) {
	key := common.GenerateRandByteArray(KeySize)
	plaintext := []byte("correct horse battery staple")

	f, err := Encrypt(plaintext, key, []byte("ctx"))
	require.NoError(t, err)

	// flip every bit of the ciphertext and the tag, one at a time
	for i := range f.Ciphertext {
		for bit := 0; bit < 8; bit++ {
			c := f.Clone()
			c.Ciphertext[i] ^= 1 << bit
			got, err := Decrypt(c, key, []byte("ctx"))
			require.ErrorIs(t, err, common.ErrDecryption)
			require.Nil(t, got)
		}
	}
	for i := range f.AuthTag {
		for bit := 0; bit < 8; bit++ {
			c := f.Clone()
			c.AuthTag[i] ^= 1 << bit
			got, err := Decrypt(c, key, []byte("ctx"))
			require.ErrorIs(t, err, common.ErrDecryption)
			require.Nil(t, got)
		}
	}
}

func TestDecrypt_Failures(t *testing.T) {
	key := common.GenerateRandByteArray(KeySize)
	f, err := Encrypt([]byte("test message"), key, []byte("a"))
	require.NoError(t, err)

	otherKey := common.GenerateRandByteArray(KeySize)

	shortIV := f.Clone()
	shortIV.IV = shortIV.IV[:12]

	noFingerprint := f.Clone()
	noFingerprint.KeyFingerprint = ""

	tests := []struct {
		name  string
		field *EncryptedField
		key   []byte
		aad   []byte
	}{
		{name: "wrong key", field: f, key: otherKey, aad: []byte("a")},
		{name: "wrong key without fingerprint", field: noFingerprint, key: otherKey, aad: []byte("a")},
		{name: "wrong aad", field: f, key: key, aad: []byte("b")},
		{name: "short iv", field: shortIV, key: key, aad: []byte("a")},
		{name: "nil field", field: nil, key: key, aad: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decrypt(tt.field, tt.key, tt.aad)
			require.ErrorIs(t, err, common.ErrDecryption)
			assert.Nil(t, got)
		})
	}
}

func TestEncryptJSON_RoundTrip(t *testing.T) {
	type payload struct {
		Codes []string `json:"codes"`
	}
	key := common.GenerateRandByteArray(KeySize)

	f, err := EncryptJSON(payload{Codes: []string{"a", "b"}}, key, nil)
	require.NoError(t, err)

	var got payload
	require.NoError(t, DecryptJSON(f, key, nil, &got))
	assert.Equal(t, []string{"a", "b"}, got.Codes)
}

func TestMarshalField(t *testing.T) {
	b, err := MarshalField(nil)
	require.NoError(t, err)
	assert.Nil(t, b)

	f, err := UnmarshalField(nil)
	require.NoError(t, err)
	assert.Nil(t, f)

	key := common.GenerateRandByteArray(KeySize)
	orig, err := Encrypt([]byte("v"), key, nil)
	require.NoError(t, err)

	b, err = MarshalField(orig)
	require.NoError(t, err)
	back, err := UnmarshalField(b)
	require.NoError(t, err)
	assert.Equal(t, orig, back)

	_, err = UnmarshalField([]byte("{not json"))
	assert.Error(t, err)
}
