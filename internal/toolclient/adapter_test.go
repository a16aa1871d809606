package toolclient

import (
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCaller struct {
	invokeResult   RawResult
	invokeErr      error
	resourceResult RawResult
	resourceErr    error
	promptResult   RawResult
	promptErr      error

	invokedTool   string
	invokedParams map[string]any
	readURI       string
	promptName    string
}

func (f *fakeCaller) Invoke(name string, params map[string]any) (RawResult, error) {
	f.invokedTool = name
	f.invokedParams = params
	return f.invokeResult, f.invokeErr
}

func (f *fakeCaller) ReadResource(uri string) (RawResult, error) {
	f.readURI = uri
	return f.resourceResult, f.resourceErr
}

func (f *fakeCaller) GetPrompt(name string, _ map[string]string) (RawResult, error) {
	f.promptName = name
	return f.promptResult, f.promptErr
}

func textResult(text string) RawResult {
	return RawResult{Kind: KindContent, Texts: []string{text}}
}

func TestCallJSONTransportError(t *testing.T) {
	fake := &fakeCaller{invokeErr: errors.New("connection reset")}
	a := NewAdapter(fake, nil)

	env := a.CallJSON("snowflake_list_tables", nil)
	assert.False(t, env.OK())
	assert.Contains(t, env.Message(), "connection reset")
}

func TestCallJSONRemoteError(t *testing.T) {
	fake := &fakeCaller{invokeResult: RawResult{
		Kind:    KindContent,
		Texts:   []string{"table not found"},
		IsError: true,
	}}
	a := NewAdapter(fake, nil)

	env := a.CallJSON("snowflake_drop_table", map[string]any{"table_name": "LANGCHAIN_X"})
	assert.False(t, env.OK())
	assert.Equal(t, "table not found", env.Message())
	assert.Equal(t, "snowflake_drop_table", fake.invokedTool)
}

func TestCallJSONUndecodableResponse(t *testing.T) {
	fake := &fakeCaller{invokeResult: textResult("not json at all")}
	a := NewAdapter(fake, nil)

	env := a.CallJSON("snowflake_query_rag", nil)
	assert.False(t, env.OK())
	assert.Contains(t, env.Message(), "decoding response")
}

func TestCallJSONDefaultsMissingStatus(t *testing.T) {
	fake := &fakeCaller{invokeResult: textResult(`{"tables":["LANGCHAIN_A"]}`)}
	a := NewAdapter(fake, nil)

	env := a.CallJSON("snowflake_list_tables", nil)
	assert.True(t, env.OK())
	assert.Equal(t, []string{"LANGCHAIN_A"}, env.Strings("tables"))
}

func TestCallJSONPassesThroughStatus(t *testing.T) {
	fake := &fakeCaller{invokeResult: textResult(`{"status":"error","message":"quota exceeded"}`)}
	a := NewAdapter(fake, nil)

	env := a.CallJSON("snowflake_create_vector_store", nil)
	assert.False(t, env.OK())
	assert.Equal(t, "quota exceeded", env.Message())
}

func TestCallTextDispatchesOnScheme(t *testing.T) {
	fake := &fakeCaller{
		resourceResult: RawResult{
			Kind:     KindResource,
			Contents: []ResourceContent{{URI: "docs://readme", Text: "resource body"}},
		},
		promptResult: RawResult{Kind: KindMessages, Texts: []string{"prompt body"}},
	}
	a := NewAdapter(fake, nil)

	got, err := a.CallText("docs://readme", nil)
	require.NoError(t, err)
	assert.Equal(t, "resource body", got)
	assert.Equal(t, "docs://readme", fake.readURI)

	got, err = a.CallText("system_prompt", map[string]any{"lang": "en"})
	require.NoError(t, err)
	assert.Equal(t, "prompt body", got)
	assert.Equal(t, "system_prompt", fake.promptName)
}

func TestCallTextBinaryResourceIsBase64(t *testing.T) {
	blob := []byte{0x89, 0x50, 0x4e, 0x47}
	fake := &fakeCaller{resourceResult: RawResult{
		Kind:     KindResource,
		Contents: []ResourceContent{{URI: "img://logo", MIMEType: "image/png", Blob: blob}},
	}}
	a := NewAdapter(fake, nil)

	got, err := a.CallText("img://logo", nil)
	require.NoError(t, err)
	assert.Equal(t, base64.StdEncoding.EncodeToString(blob), got)
}

func TestCallTextFallsBackToRaw(t *testing.T) {
	fake := &fakeCaller{promptResult: RawResult{Kind: KindRaw, Raw: "plain reply"}}
	a := NewAdapter(fake, nil)

	got, err := a.CallText("greeting", nil)
	require.NoError(t, err)
	assert.Equal(t, "plain reply", got)
}

func TestCallImageRoundTrip(t *testing.T) {
	original := []byte("fake image bytes")
	returned := []byte("annotated image")
	reply := `{"status":"success","description":"a cat","image_bytes":"` +
		base64.StdEncoding.EncodeToString(returned) + `"}`
	fake := &fakeCaller{invokeResult: textResult(reply)}
	a := NewAdapter(fake, nil)

	description, img, err := a.CallImage("image_recognition", original)
	require.NoError(t, err)
	assert.Equal(t, "a cat", description)
	assert.Equal(t, returned, img)

	sent, ok := fake.invokedParams["image_bytes"].(string)
	require.True(t, ok)
	decoded, err := base64.StdEncoding.DecodeString(sent)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestCallImageRemoteError(t *testing.T) {
	fake := &fakeCaller{invokeResult: textResult(`{"status":"error","message":"unsupported format"}`)}
	a := NewAdapter(fake, nil)

	_, _, err := a.CallImage("image_recognition", []byte("x"))
	assert.EqualError(t, err, "unsupported format")
}
