package cvcbor_test

import (
	"testing"

	"github.com/gordian-engine/gadapter/cv/cvcodec"
	"github.com/gordian-engine/gadapter/cv/cvcodec/cvcbor"
	"github.com/gordian-engine/gadapter/cv/cvcodec/cvcodectest"
)

func TestMarshalCodecCompliance(t *testing.T) {
	cvcodectest.TestMarshalCodecCompliance(t, func() cvcodec.MarshalCodec {
		return cvcbor.MarshalCodec{}
	})
}
