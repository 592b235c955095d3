package core

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	CredentialPayloadFormatFieldsJSON = "credential_fields_json"
	CredentialPayloadVersionV1        = 1
)

// CredentialCodec turns credential fields into the byte payload the vault
// encrypts, and back.
type CredentialCodec interface {
	Format() string
	Version() int
	Encode(fields CredentialFields) ([]byte, error)
	Decode(payload []byte) (CredentialFields, error)
}

type JSONCredentialCodec struct{}

func (JSONCredentialCodec) Format() string {
	return CredentialPayloadFormatFieldsJSON
}

func (JSONCredentialCodec) Version() int {
	return CredentialPayloadVersionV1
}

func (JSONCredentialCodec) Encode(fields CredentialFields) ([]byte, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("core: credential fields are required")
	}
	normalized := make(map[string]string, len(fields))
	for key, value := range fields {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" {
			continue
		}
		normalized[trimmedKey] = strings.TrimSpace(value)
	}
	if len(normalized) == 0 {
		return nil, fmt.Errorf("core: credential fields are required")
	}
	encoded, err := json.Marshal(normalized)
	if err != nil {
		return nil, fmt.Errorf("core: encode credential payload: %w", err)
	}
	return encoded, nil
}

func (JSONCredentialCodec) Decode(payload []byte) (CredentialFields, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("core: credential payload is empty")
	}
	decoded := map[string]string{}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, fmt.Errorf("core: decode credential payload: %w", err)
	}
	fields := make(CredentialFields, len(decoded))
	for key, value := range decoded {
		fields[key] = value
	}
	return fields, nil
}

var _ CredentialCodec = JSONCredentialCodec{}
