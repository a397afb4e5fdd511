package ljson_test

import (
	"testing"

	"github.com/gordian-engine/lattica/lcodec/lcodectest"
	"github.com/gordian-engine/lattica/lcodec/ljson"
)

func TestMarshalCodecCompliance(t *testing.T) {
	lcodectest.TestMarshalCodecCompliance(t, ljson.MarshalCodec{})
}
