package envelope

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"sirena/pkg/proto"
)

const (
	codeKeyError     = "-1"
	cryptErrExpired  = "4"
	cryptErrRejected = "5"

	methodDescribe = "describe"
)

var ErrMalformedAnswer = errors.New("malformed gateway answer")

// GatewayError is an error node embedded in an answer.
type GatewayError struct {
	Method     string
	Code       string
	CryptError string
	Text       string
	// AnswerLevel is set when the node sits directly under <answer> rather
	// than under the method element.
	AnswerLevel bool
}

func (e *GatewayError) Error() string {
	if e.CryptError != "" {
		return fmt.Sprintf("%s: gateway error %s (crypt_error %s): %s", e.Method, e.Code, e.CryptError, e.Text)
	}
	return fmt.Sprintf("%s: gateway error %s: %s", e.Method, e.Code, e.Text)
}

func newGatewayError(method string, n *Node, answerLevel bool) *GatewayError {
	e := &GatewayError{Method: method, Text: n.Value(), AnswerLevel: answerLevel}
	e.Code, _ = n.Attr("code")
	e.CryptError, _ = n.Attr("crypt_error")
	return e
}

type Answer struct {
	Method string
	Root   *Node
	// Data is the method element under <answer>, nil if absent.
	Data  *Node
	Error *GatewayError

	keyRejected bool
}

// KeyRejected reports whether the gateway refused the symmetric key the
// request was encrypted with.
func (a *Answer) KeyRejected() bool {
	return a.keyRejected
}

func (a *Answer) HasError() bool {
	return a.Error != nil
}

// Parse reads an answer envelope for method. Payloads carrying characters
// that are illegal in XML are cleaned and parsed once more.
func Parse(method string, payload string) (*Answer, error) {
	root, err := decodeTree(payload)
	if err != nil {
		var syntaxErr *xml.SyntaxError
		if !errors.As(err, &syntaxErr) {
			return nil, fmt.Errorf("%w: %v", ErrMalformedAnswer, err)
		}
		cleaned := Sanitize(payload)
		if cleaned == payload {
			return nil, fmt.Errorf("%w: %v", ErrMalformedAnswer, err)
		}
		if root, err = decodeTree(cleaned); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedAnswer, err)
		}
	}
	if root.Name() != "sirena" {
		return nil, fmt.Errorf("%w: root element <%s>", ErrMalformedAnswer, root.Name())
	}
	answer := root.Child("answer")
	if answer == nil {
		return nil, fmt.Errorf("%w: no answer element", ErrMalformedAnswer)
	}

	a := &Answer{Method: method, Root: root, Data: answer.Child(method)}
	if n := answer.Child("error"); n != nil {
		a.Error = newGatewayError(method, n, true)
		a.keyRejected = isKeyError(a.Error) && !proto.IsPublicMethod(method)
	} else if n := answer.Child(methodDescribe); n != nil && method != methodDescribe {
		// the gateway may report a refused request as a describe element
		// carrying the error attributes itself or an error child
		a.keyRejected = isKeyError(newGatewayError(method, n, true)) && !proto.IsPublicMethod(method)
		if e := n.Child("error"); e != nil {
			n = e
		}
		a.Error = newGatewayError(method, n, true)
	} else if n := a.Data.Child("error"); n != nil {
		a.Error = newGatewayError(method, n, false)
	}
	return a, nil
}

func isKeyError(e *GatewayError) bool {
	return e.Code == codeKeyError && (e.CryptError == cryptErrExpired || e.CryptError == cryptErrRejected)
}

func decodeTree(payload string) (*Node, error) {
	d := xml.NewDecoder(strings.NewReader(payload))
	// payload is already UTF-8 text; the declared charset is informational
	d.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) {
		return input, nil
	}
	root := &Node{}
	if err := d.Decode(root); err != nil {
		return nil, err
	}
	return root, nil
}

// Sanitize drops characters outside the XML 1.0 Char production.
func Sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == 0x9 || r == 0xA || r == 0xD:
			return r
		case r >= 0x20 && r <= 0xD7FF:
			return r
		case r >= 0xE000 && r <= 0xFFFD:
			return r
		case r >= 0x10000 && r <= 0x10FFFF:
			return r
		}
		return -1
	}, s)
}
