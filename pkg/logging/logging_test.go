package logging

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKVBufferForLog(t *testing.T) {
	b := NewKVBufferForLog().
		AddMethod("order").
		AddMsgId(12).
		AddKeyId(0).
		AddKeyId(101).
		AddTryNo(2).
		AddElapsed(1500 * time.Microsecond).
		AddError(nil).
		AddError(errors.New("closed"))
	assert.Equal(t, "method=order,msgid=12,keyid=101,try_no=2,rht=1500,err=closed", b.String())
}

func TestKVBuffer(t *testing.T) {
	b := NewKVBuffer().AddAddr("10.0.0.1:34323").AddStatus("ok")
	assert.Equal(t, "addr=10.0.0.1:34323&st=ok", b.String())
}
