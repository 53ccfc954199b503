package envelope

import (
	"bytes"
	"encoding/xml"
	"fmt"
)

const prolog = `<?xml version="1.0" encoding="UTF-8"?>` + "\n"

// IRequest is what the orchestrator sends: a method name and a body producer.
type IRequest interface {
	MethodName() string
	Payload() ([]byte, error)
}

// Query wraps a method body in the gateway query envelope:
//
//	<sirena><query><METHOD>body</METHOD></query></sirena>
type Query struct {
	method string
	body   []byte
}

func NewQuery(method string, body []byte) *Query {
	return &Query{method: method, body: body}
}

// NewQueryValue marshals v as the body of method.
func NewQueryValue(method string, v interface{}) (*Query, error) {
	body, err := xml.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %s body: %w", method, err)
	}
	return NewQuery(method, body), nil
}

func (q *Query) MethodName() string {
	return q.method
}

func (q *Query) Payload() ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(len(prolog) + len(q.body) + 2*len(q.method) + 40)
	buf.WriteString(prolog)
	buf.WriteString("<sirena><query><")
	buf.WriteString(q.method)
	if len(q.body) == 0 {
		buf.WriteString("/></query></sirena>")
		return buf.Bytes(), nil
	}
	buf.WriteString(">")
	buf.Write(q.body)
	buf.WriteString("</")
	buf.WriteString(q.method)
	buf.WriteString("></query></sirena>")
	return buf.Bytes(), nil
}

// PlainRequest is sent verbatim.
type PlainRequest struct {
	Method string
	Body   []byte
}

func (r *PlainRequest) MethodName() string {
	return r.Method
}

func (r *PlainRequest) Payload() ([]byte, error) {
	return r.Body, nil
}
