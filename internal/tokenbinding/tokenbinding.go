// Package tokenbinding parses token binding messages as transmitted in the
// Sec-Token-Binding header (RFC 8471 and RFC 8473).
package tokenbinding

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/luikyv/go-authorize/internal/hashutil"
	"golang.org/x/crypto/cryptobyte"
)

type Type uint8

const (
	TypeProvided Type = 0
	TypeReferred Type = 1
)

type KeyParameters uint8

const (
	KeyParametersRSA2048PKCS15 KeyParameters = 0
	KeyParametersRSA2048PSS    KeyParameters = 1
	KeyParametersECDSAP256     KeyParameters = 2
)

type ID struct {
	KeyParameters KeyParameters
	PublicKey     []byte
	// raw is the TLS encoding of the whole token binding id.
	raw []byte
}

// Hash returns the base64url encoded SHA-256 hash of the encoded token binding
// id. This is the value used as the "tbh" confirmation of bound tokens.
func (id ID) Hash() string {
	return hashutil.ThumbprintBytes(id.raw)
}

type Extension struct {
	Type uint8
	Data []byte
}

type Binding struct {
	Type       Type
	ID         ID
	Signature  []byte
	Extensions []Extension
}

type Message struct {
	Bindings []Binding
}

// Binding returns the first token binding of type t.
func (m Message) Binding(t Type) (Binding, bool) {
	for _, b := range m.Bindings {
		if b.Type == t {
			return b, true
		}
	}
	return Binding{}, false
}

// Parse decodes a base64url encoded token binding message.
func Parse(header string) (Message, error) {
	data, err := base64.RawURLEncoding.DecodeString(header)
	if err != nil {
		return Message{}, fmt.Errorf("token binding message is not base64url encoded: %w", err)
	}

	input := cryptobyte.String(data)
	var bindings cryptobyte.String
	if !input.ReadUint16LengthPrefixed(&bindings) || !input.Empty() {
		return Message{}, errors.New("malformed token binding message")
	}

	var msg Message
	for !bindings.Empty() {
		binding, err := parseBinding(&bindings)
		if err != nil {
			return Message{}, err
		}
		msg.Bindings = append(msg.Bindings, binding)
	}

	if len(msg.Bindings) == 0 {
		return Message{}, errors.New("the token binding message has no token bindings")
	}
	return msg, nil
}

func parseBinding(s *cryptobyte.String) (Binding, error) {
	var binding Binding

	var bindingType uint8
	if !s.ReadUint8(&bindingType) {
		return Binding{}, errors.New("malformed token binding type")
	}
	binding.Type = Type(bindingType)

	// The id is kept in its encoded form so it can be hashed.
	idStart := *s
	var keyParams uint8
	var publicKey cryptobyte.String
	if !s.ReadUint8(&keyParams) || !s.ReadUint16LengthPrefixed(&publicKey) || publicKey.Empty() {
		return Binding{}, errors.New("malformed token binding id")
	}
	binding.ID = ID{
		KeyParameters: KeyParameters(keyParams),
		PublicKey:     []byte(publicKey),
		raw:           []byte(idStart[:len(idStart)-len(*s)]),
	}

	var signature cryptobyte.String
	if !s.ReadUint16LengthPrefixed(&signature) || signature.Empty() {
		return Binding{}, errors.New("malformed token binding signature")
	}
	binding.Signature = []byte(signature)

	var extensions cryptobyte.String
	if !s.ReadUint16LengthPrefixed(&extensions) {
		return Binding{}, errors.New("malformed token binding extensions")
	}
	for !extensions.Empty() {
		var ext Extension
		var data cryptobyte.String
		if !extensions.ReadUint8(&ext.Type) || !extensions.ReadUint16LengthPrefixed(&data) {
			return Binding{}, errors.New("malformed token binding extension")
		}
		ext.Data = []byte(data)
		binding.Extensions = append(binding.Extensions, ext)
	}

	return binding, nil
}

// IDHash returns the hash of the token binding id the tokens must be bound
// to. The referred token binding takes precedence over the provided one.
func IDHash(header string) (string, error) {
	msg, err := Parse(header)
	if err != nil {
		return "", err
	}

	if binding, ok := msg.Binding(TypeReferred); ok {
		return binding.ID.Hash(), nil
	}

	if binding, ok := msg.Binding(TypeProvided); ok {
		return binding.ID.Hash(), nil
	}

	return "", errors.New("no provided or referred token binding was found")
}
