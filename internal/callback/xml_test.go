package callback

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractFields_CDATA(t *testing.T) {
	body := []byte(`<xml><ToUserName><![CDATA[ww123]]></ToUserName><AgentID><![CDATA[1]]></AgentID></xml>`)
	fields := extractFields(body)
	assert.Equal(t, "ww123", fields["ToUserName"])
	assert.Equal(t, "1", fields["AgentID"])
}

func TestExtractFields_PlainValue(t *testing.T) {
	body := []byte(`<xml><SpNo>202601010001</SpNo><SpStatus>2</SpStatus></xml>`)
	fields := extractFields(body)
	assert.Equal(t, "202601010001", fields["SpNo"])
	assert.Equal(t, "2", fields["SpStatus"])
}

func TestExtractFields_MixedAndMissing(t *testing.T) {
	body := []byte(`<xml><SpNo><![CDATA[sp1]]></SpNo><SpName>leave</SpName></xml>`)
	fields := extractFields(body)
	assert.Equal(t, "sp1", fields["SpNo"])
	assert.Equal(t, "leave", fields["SpName"])
	_, ok := fields["StatuChangeEvent"]
	assert.False(t, ok)
}
