package toolclient

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"docchat/internal/domain"
)

// Caller is the transport-facing subset of the tool client.
type Caller interface {
	Invoke(name string, params map[string]any) (RawResult, error)
	ReadResource(uri string) (RawResult, error)
	GetPrompt(name string, params map[string]string) (RawResult, error)
}

// Adapter normalizes heterogeneous raw replies into one of two stable
// shapes: an envelope with a status field, or a plain string. No transport
// or protocol error escapes past it.
type Adapter struct {
	client Caller
	log    *zap.Logger
}

// NewAdapter wraps a tool client.
func NewAdapter(client Caller, log *zap.Logger) *Adapter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Adapter{client: client, log: log}
}

// CallJSON invokes a tool expected to return a single text block carrying
// a JSON document. The returned envelope always contains a status key;
// transport, remote and decode failures become error envelopes.
func (a *Adapter) CallJSON(name string, params map[string]any) domain.Envelope {
	raw, err := a.client.Invoke(name, params)
	if err != nil {
		a.log.Error("tool call failed", zap.String("tool", name), zap.Error(err))
		return domain.ErrorEnvelope(fmt.Sprintf("calling tool %s: %v", name, err))
	}
	text := firstText(raw)
	if raw.IsError {
		if text == "" {
			text = "remote tool reported an error"
		}
		return domain.ErrorEnvelope(text)
	}
	var env domain.Envelope
	if err := json.Unmarshal([]byte(text), &env); err != nil {
		a.log.Error("undecodable tool response", zap.String("tool", name), zap.Error(err))
		return domain.ErrorEnvelope(fmt.Sprintf("decoding response of tool %s: %v", name, err))
	}
	if env == nil {
		return domain.ErrorEnvelope(fmt.Sprintf("empty response from tool %s", name))
	}
	if _, ok := env["status"]; !ok {
		env["status"] = domain.StatusSuccess
	}
	return env
}

// CallText handles resource reads (inputs carrying a URI scheme) and prompt
// templates uniformly, returning one string regardless of the raw shape.
func (a *Adapter) CallText(nameOrURI string, params map[string]any) (string, error) {
	var raw RawResult
	var err error
	if strings.Contains(nameOrURI, "://") {
		raw, err = a.client.ReadResource(nameOrURI)
	} else {
		raw, err = a.client.GetPrompt(nameOrURI, stringParams(params))
	}
	if err != nil {
		return "", err
	}
	switch raw.Kind {
	case KindMessages, KindContent:
		if len(raw.Texts) > 0 {
			return raw.Texts[0], nil
		}
	case KindResource:
		if len(raw.Contents) > 0 {
			first := raw.Contents[0]
			if first.Text != "" {
				return first.Text, nil
			}
			return base64.StdEncoding.EncodeToString(first.Blob), nil
		}
	}
	return raw.Raw, nil
}

// CallImage sends raw image bytes to a tool as base64 and decodes the
// description plus image payload from the JSON envelope.
func (a *Adapter) CallImage(name string, image []byte) (string, []byte, error) {
	payload := base64.StdEncoding.EncodeToString(image)
	env := a.CallJSON(name, map[string]any{"image_bytes": payload})
	if !env.OK() {
		msg := env.Message()
		if msg == "" {
			msg = "image tool failed"
		}
		return "", nil, errors.New(msg)
	}
	description := env.String("description")
	encoded := env.String("image_bytes")
	if encoded == "" {
		return description, nil, nil
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return description, nil, fmt.Errorf("decoding image payload: %w", err)
	}
	return description, raw, nil
}

func firstText(raw RawResult) string {
	if len(raw.Texts) > 0 {
		return raw.Texts[0]
	}
	return raw.Raw
}

func stringParams(params map[string]any) map[string]string {
	if len(params) == 0 {
		return nil
	}
	out := make(map[string]string, len(params))
	for k, v := range params {
		if s, ok := v.(string); ok {
			out[k] = s
		} else {
			out[k] = fmt.Sprint(v)
		}
	}
	return out
}
