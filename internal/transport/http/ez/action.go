package ez

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"

	"user-api/internal/core/apperr"
	resp "user-api/internal/transport/http/response"
	"user-api/internal/transport/http/validation"
)

const (
	msgInvalidRequest  = "Invalid request data"
	msgValidation      = "Validation failed"
	msgMalformedJSON   = "Malformed JSON"
	msgBodyNotAnObject = "Request body must be a JSON object"
)

type Binder string

const (
	BindJSON  Binder = "json"  // request body
	BindQuery Binder = "query" // ?a=b, unknown keys rejected
	BindNone  Binder = "none"  // handler reads c.Param itself
)

type Options struct {
	// Production hides per-field validation details.
	Production bool
}

type EZ struct {
	g    *gin.RouterGroup
	opts Options
}

func New(g *gin.RouterGroup, o Options) EZ { return EZ{g: g, opts: o} }

// Group derives an EZ for a sub path sharing the same options.
func (e EZ) Group(path string, mw ...gin.HandlerFunc) EZ {
	return EZ{g: e.g.Group(path, mw...), opts: e.opts}
}

// Action is one endpoint: I is the bound input, O the response body.
type Action[I any, O any] struct {
	Method  string
	Path    string
	Binder  Binder
	Guards  []gin.HandlerFunc // run before binding, in order
	Status  int               // success status, default 200; 204 writes no body
	Handler func(c *gin.Context, in *I) (O, error)
}

// RegisterAction mounts a on e. Guards abort on their own; everything the
// handler returns is rendered here, errors through apperr.
func RegisterAction[I any, O any](e EZ, a Action[I, O]) {
	status := a.Status
	if status == 0 {
		status = http.StatusOK
	}
	var allowed map[string]struct{}
	if a.Binder == BindQuery {
		allowed = formKeys(reflect.TypeFor[I]())
	}

	h := func(c *gin.Context) {
		var in I
		if err := bind(c, a.Binder, allowed, &in); err != nil {
			WriteError(c, e.bindError(err))
			return
		}

		out, err := a.Handler(c, &in)
		if err != nil {
			WriteError(c, err)
			return
		}
		if status == http.StatusNoContent {
			c.Status(status)
			return
		}
		c.JSON(status, out)
	}

	handlers := append(append([]gin.HandlerFunc{}, a.Guards...), h)
	e.g.Handle(strings.ToUpper(a.Method), a.Path, handlers...)
}

func bind[I any](c *gin.Context, b Binder, allowed map[string]struct{}, in *I) error {
	switch b {
	case BindJSON:
		err := c.ShouldBindJSON(in)
		if errors.Is(err, io.EOF) {
			// empty body: no fields, rules still apply
			return binding.Validator.ValidateStruct(in)
		}
		return err
	case BindQuery:
		if err := unknownQueryKeys(c, allowed); err != nil {
			return err
		}
		if err := c.ShouldBindQuery(in); err != nil {
			return queryParseError(c, allowed, err)
		}
		return nil
	default:
		return nil
	}
}

type unknownFieldsError struct{ names []string }

func (e *unknownFieldsError) Error() string {
	parts := make([]string, len(e.names))
	for i, n := range e.names {
		parts[i] = fmt.Sprintf("property %s should not exist", n)
	}
	return strings.Join(parts, "; ")
}

func unknownQueryKeys(c *gin.Context, allowed map[string]struct{}) error {
	var bad []string
	for k := range c.Request.URL.Query() {
		if _, ok := allowed[k]; !ok {
			bad = append(bad, k)
		}
	}
	if len(bad) == 0 {
		return nil
	}
	sort.Strings(bad)
	return &unknownFieldsError{names: bad}
}

// fieldTypeError is a value that could not be converted to its field's type.
type fieldTypeError struct {
	field string
	want  string
	err   error
}

func (e *fieldTypeError) Error() string { return e.err.Error() }
func (e *fieldTypeError) Unwrap() error { return e.err }

// queryParseError names the query key whose value failed to parse.
func queryParseError(c *gin.Context, allowed map[string]struct{}, err error) error {
	var ne *strconv.NumError
	if !errors.As(err, &ne) {
		return err
	}
	q := c.Request.URL.Query()
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	te := &fieldTypeError{want: "integer", err: err}
	switch ne.Func {
	case "ParseBool":
		te.want = "boolean"
	case "ParseFloat":
		te.want = "number"
	}
	for _, k := range keys {
		if _, ok := allowed[k]; ok && slices.Contains(q[k], ne.Num) {
			te.field = k
			break
		}
	}
	return te
}

func typeName(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Slice, reflect.Array:
		return "array"
	default:
		return "object"
	}
}

var typePhrase = map[string]string{
	"string":  "a string",
	"boolean": "a boolean value",
	"integer": "an integer number",
	"number":  "a number",
	"array":   "an array",
	"object":  "an object",
}

func typeDetail(field, want string) []validation.FieldError {
	return []validation.FieldError{{
		Field:   field,
		Rule:    "type",
		Param:   want,
		Message: fmt.Sprintf("%s must be %s", field, typePhrase[want]),
	}}
}

// bindError maps a binding failure to a 400, or 413 for an oversized body.
func (e EZ) bindError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return &apperr.Error{Code: resp.CodeTooLarge, Msg: resp.CodeMsgMap[resp.CodeTooLarge]}
	}
	if e.opts.Production {
		return apperr.BadRequest(msgInvalidRequest)
	}

	if details := validation.Details(err); details != nil {
		return apperr.Validation(msgValidation, details)
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) || errors.Is(err, io.ErrUnexpectedEOF) {
		return apperr.BadRequest(msgMalformedJSON)
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		if typeErr.Field == "" {
			return apperr.BadRequest(msgBodyNotAnObject)
		}
		return apperr.Validation(msgValidation, typeDetail(typeErr.Field, typeName(typeErr.Type)))
	}
	var fieldErr *fieldTypeError
	if errors.As(err, &fieldErr) {
		if fieldErr.field == "" {
			return apperr.BadRequest(msgInvalidRequest)
		}
		return apperr.Validation(msgValidation, typeDetail(fieldErr.field, fieldErr.want))
	}
	var unknown *unknownFieldsError
	if errors.As(err, &unknown) {
		details := make([]validation.FieldError, 0, len(unknown.names))
		for _, n := range unknown.names {
			details = append(details, validation.FieldError{
				Field: n, Rule: "whitelist", Message: fmt.Sprintf("property %s should not exist", n),
			})
		}
		return apperr.Validation(msgValidation, details)
	}
	if name, ok := strings.CutPrefix(err.Error(), "json: unknown field "); ok {
		name = strings.Trim(name, `"`)
		return apperr.Validation(msgValidation, []validation.FieldError{{
			Field: name, Rule: "whitelist", Message: fmt.Sprintf("property %s should not exist", name),
		}})
	}
	return apperr.BadRequest(msgInvalidRequest)
}

// WriteError renders err as {code,msg,details}. Messages of *apperr.Error
// are client safe; anything else becomes a generic 500. Errors of 500 and
// above are attached to the context for the access log.
func WriteError(c *gin.Context, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		ae = &apperr.Error{Code: http.StatusInternalServerError, Msg: resp.CodeMsgMap[resp.CodeServerError], Err: err}
	}
	if ae.Code >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	msg := ae.Msg
	if msg == "" {
		msg = resp.CodeMsgMap[ae.Code]
	}
	c.AbortWithStatusJSON(ae.Code, resp.ErrorWithDetails(ae.Code, msg, ae.Details))
}

// ParamUUID returns path parameter name in canonical form, or a 400.
func ParamUUID(c *gin.Context, name string) (string, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return "", apperr.BadRequest("Validation failed (uuid is expected)")
	}
	return id.String(), nil
}

func formKeys(t reflect.Type) map[string]struct{} {
	keys := map[string]struct{}{}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return keys
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Anonymous {
			for k := range formKeys(f.Type) {
				keys[k] = struct{}{}
			}
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("form"), ",")
		switch name {
		case "-":
		case "":
			keys[f.Name] = struct{}{}
		default:
			keys[name] = struct{}{}
		}
	}
	return keys
}
