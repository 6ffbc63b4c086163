package errs

import (
	"strconv"
	"strings"

	pkgerr "github.com/pkg/errors"
)

// CodeError 带错误码的业务错误 所有发给客户端的错误都走这里
type CodeError struct {
	Code   string `json:"code"`
	Msg    string `json:"msg"`
	Detail string `json:"detail,omitempty"`
}

func NewCodeError(code string, msg string) *CodeError {
	return &CodeError{
		Code: code,
		Msg:  msg,
	}
}

// WithDetail 追加细节 返回副本 原值不变
func (e *CodeError) WithDetail(detail string) *CodeError {
	var d string
	if e.Detail == "" {
		d = detail
	} else {
		d = e.Detail + ", " + detail
	}
	return &CodeError{
		Code:   e.Code,
		Msg:    e.Msg,
		Detail: d,
	}
}

func (e *CodeError) clone() *CodeError {
	return &CodeError{
		Code:   e.Code,
		Msg:    e.Msg,
		Detail: e.Detail,
	}
}

// WrapMsg 追加细节并带上调用栈
func (e *CodeError) WrapMsg(msg string, kv ...any) error {
	retErr := e.clone()
	if msg != "" || len(kv) > 0 {
		detail := toString(msg, kv)
		if retErr.Detail == "" {
			retErr.Detail = detail
		} else {
			retErr.Detail += ", " + detail
		}
	}
	return pkgerr.WithStack(retErr)
}

func (e *CodeError) Is(err error) bool {
	var target *CodeError
	if !pkgerr.As(err, &target) {
		return false
	}
	return e.Code == target.Code
}

func (e *CodeError) Error() string {
	v := make([]string, 0, 3)
	v = append(v, e.Code, e.Msg)
	if e.Detail != "" {
		v = append(v, e.Detail)
	}
	return strings.Join(v, " ")
}

// AsCodeError 从任意 error 中取出 CodeError 取不到返回 nil
func AsCodeError(err error) *CodeError {
	if err == nil {
		return nil
	}
	var ce *CodeError
	if pkgerr.As(err, &ce) {
		return ce
	}
	return nil
}

func Wrap(err error) error {
	if err == nil {
		return nil
	}
	return pkgerr.WithStack(err)
}

func WrapMsg(err error, msg string, kv ...any) error {
	if err == nil {
		return nil
	}
	return pkgerr.Wrap(err, toString(msg, kv))
}

func toString(msg string, kv []any) string {
	var sb strings.Builder
	sb.WriteString(msg)
	for i := 0; i < len(kv); i += 2 {
		if i != 0 || msg != "" {
			sb.WriteString(" ")
		}
		sb.WriteString(toKey(kv[i]))
		sb.WriteString("=")
		if i+1 < len(kv) {
			sb.WriteString(toKey(kv[i+1]))
		}
	}
	return sb.String()
}

func toKey(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case error:
		return t.Error()
	default:
		return "?"
	}
}
