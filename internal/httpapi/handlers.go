package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/goliatone/go-docfill/pkg/docerr"
	"github.com/goliatone/go-docfill/pkg/document"
	"github.com/goliatone/go-docfill/pkg/openapi"
	"github.com/goliatone/go-docfill/pkg/orchestrator"
	"github.com/goliatone/go-docfill/pkg/schema"
)

// Form keys reserved by the HTML fill form.
const (
	formTemplateKey = "tpl"
	formFormatKey   = "fmt"
)

const langCookieMaxAge = 365 * 24 * 60 * 60

type templateView struct {
	schema.TemplateSchema
	Formats []document.Format `json:"formats"`
}

func (s *Server) view(spec schema.TemplateSchema) templateView {
	return templateView{TemplateSchema: spec, Formats: s.generator.Targets(spec.Format)}
}

func (s *Server) listTemplates(c echo.Context) error {
	specs, err := s.generator.Templates(c.Request().Context())
	if err != nil {
		return err
	}
	data := make([]templateView, 0, len(specs))
	for _, spec := range specs {
		data = append(data, s.view(spec))
	}
	return c.JSON(http.StatusOK, map[string]any{"data": data})
}

func (s *Server) describeTemplate(c echo.Context) error {
	spec, err := s.generator.Schema(c.Request().Context(), templateParam(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.view(spec))
}

func (s *Server) generateAPI(c echo.Context) error {
	id, ok := strings.CutSuffix(templateParam(c), "/generate")
	if !ok || id == "" {
		return echo.ErrNotFound
	}
	format, err := parseFormat(c.QueryParam("format"))
	if err != nil {
		return err
	}
	values, err := readValues(c)
	if err != nil {
		return err
	}

	doc, err := s.generator.Generate(c.Request().Context(), orchestrator.Request{
		TemplateID: id,
		Values:     values,
		Format:     format,
	})
	if err != nil {
		return err
	}
	return sendDocument(c, doc)
}

func (s *Server) generateForm(c echo.Context) error {
	form, err := c.FormParams()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form body")
	}
	id := strings.TrimSpace(form.Get(formTemplateKey))
	if id == "" {
		return s.renderError(c, echo.NewHTTPError(http.StatusBadRequest, "tpl is required"))
	}
	format, err := parseFormat(form.Get(formFormatKey))
	if err != nil {
		return s.renderError(c, err)
	}

	values := firstValues(form, formTemplateKey, formFormatKey)
	doc, err := s.generator.Generate(c.Request().Context(), orchestrator.Request{
		TemplateID: id,
		Values:     values,
		Format:     format,
	})
	if err != nil {
		var bindErrs *docerr.BindingErrors
		if errors.As(err, &bindErrs) {
			return s.renderFill(c, http.StatusUnprocessableEntity, id, values, format, bindErrs.Fields())
		}
		return s.renderError(c, err)
	}
	return sendDocument(c, doc)
}

func (s *Server) index(c echo.Context) error {
	specs, err := s.generator.Templates(c.Request().Context())
	if err != nil {
		return s.renderError(c, err)
	}
	type entry struct {
		ID     string
		Format string
	}
	entries := make([]entry, 0, len(specs))
	for _, spec := range specs {
		entries = append(entries, entry{ID: spec.TemplateID, Format: spec.Format.String()})
	}
	return s.render(c, http.StatusOK, "index", map[string]any{"templates": entries})
}

func (s *Server) fill(c echo.Context) error {
	return s.renderFill(c, http.StatusOK, templateParam(c), nil, "", nil)
}

type fieldView struct {
	Name     string
	Label    string
	Type     string
	Choices  []string
	Required bool
	Value    string
	Errors   []string
}

func (s *Server) renderFill(c echo.Context, status int, id string, values map[string]string, selected document.Format, fieldErrs map[string][]string) error {
	spec, err := s.generator.Schema(c.Request().Context(), id)
	if err != nil {
		return s.renderError(c, err)
	}

	fields := make([]fieldView, 0, len(spec.Fields))
	for _, field := range spec.Fields {
		fields = append(fields, fieldView{
			Name:     field.Name,
			Label:    field.Label,
			Type:     string(field.Type),
			Choices:  field.Choices,
			Required: field.Required,
			Value:    values[field.Name],
			Errors:   fieldErrs[field.Name],
		})
	}
	var formats []string
	for _, f := range s.generator.Targets(spec.Format) {
		formats = append(formats, f.String())
	}
	if selected == "" {
		selected = spec.Format
	}

	return s.render(c, status, "fill", map[string]any{
		"id":       spec.TemplateID,
		"fields":   fields,
		"formats":  formats,
		"selected": selected.String(),
		"invalid":  len(fieldErrs) > 0,
	})
}

func (s *Server) setLang(c echo.Context) error {
	lang := c.QueryParam("lang")
	if !s.catalog.supports(lang) {
		lang = s.defaultLang
	}
	c.SetCookie(&http.Cookie{
		Name:     LangCookie,
		Value:    lang,
		Path:     "/",
		MaxAge:   langCookieMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return c.Redirect(http.StatusSeeOther, localReferer(c.Request()))
}

func (s *Server) openAPI(c echo.Context) error {
	ctx := c.Request().Context()
	specs, err := s.generator.Templates(ctx)
	if err != nil {
		return err
	}
	templates := make([]openapi.Template, 0, len(specs))
	for _, spec := range specs {
		templates = append(templates, openapi.Template{Schema: spec, Formats: s.generator.Targets(spec.Format)})
	}
	raw, err := openapi.Build(ctx, openapi.Info{
		Title:       "docfill",
		Version:     s.version,
		Description: "Fill document templates and download the result.",
	}, templates)
	if err != nil {
		return err
	}
	return c.JSONBlob(http.StatusOK, raw)
}

func (s *Server) render(c echo.Context, status int, page string, data map[string]any) error {
	lang := resolveLang(c.Request(), s.catalog, s.defaultLang)
	data["lang"] = lang
	data["languages"] = s.catalog.Languages()

	var buf bytes.Buffer
	if err := s.pages.RenderPage(&buf, page, data); err != nil {
		return fmt.Errorf("httpapi: render %s page: %w", page, err)
	}
	return c.HTMLBlob(status, buf.Bytes())
}

// renderError answers page routes with an HTML error page.
func (s *Server) renderError(c echo.Context, err error) error {
	status := StatusFor(err)
	s.logFailure(c, status, err)
	return s.render(c, status, "error", map[string]any{"message": describe(err).Message})
}

func templateParam(c echo.Context) string {
	raw := c.Param("*")
	if unescaped, err := url.PathUnescape(raw); err == nil {
		raw = unescaped
	}
	return strings.Trim(raw, "/")
}

func parseFormat(raw string) (document.Format, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	format, err := document.ParseFormat(raw)
	if err != nil {
		return "", docerr.Wrap(docerr.KindUnsupportedFormat, err, "output format %q", raw)
	}
	return format, nil
}

// readValues accepts a flat JSON object or a form body. JSON numbers and
// booleans keep their literal text so the binder sees what was sent.
func readValues(c echo.Context) (map[string]string, error) {
	req := c.Request()
	if strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		decoder := json.NewDecoder(req.Body)
		decoder.UseNumber()
		var raw map[string]any
		if err := decoder.Decode(&raw); err != nil {
			return nil, echo.NewHTTPError(http.StatusBadRequest, "body must be a JSON object")
		}
		values := make(map[string]string, len(raw))
		for key, value := range raw {
			switch v := value.(type) {
			case nil:
			case string:
				values[key] = v
			case json.Number:
				values[key] = v.String()
			case bool:
				values[key] = strconv.FormatBool(v)
			default:
				return nil, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("field %q must be a scalar", key))
			}
		}
		return values, nil
	}

	form, err := c.FormParams()
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid form body")
	}
	return firstValues(form), nil
}

func firstValues(form url.Values, skip ...string) map[string]string {
	values := make(map[string]string, len(form))
	for key, list := range form {
		if len(list) == 0 || slices.Contains(skip, key) {
			continue
		}
		values[key] = list[0]
	}
	return values
}

func sendDocument(c echo.Context, doc document.RenderedDocument) error {
	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": doc.Filename})
	c.Response().Header().Set(echo.HeaderContentDisposition, disposition)
	return c.Blob(http.StatusOK, doc.ContentType(), doc.Content)
}

// localReferer returns the referring path when it points back at this
// server, "/" otherwise.
func localReferer(r *http.Request) string {
	ref, err := url.Parse(r.Referer())
	if err != nil || ref.Path == "" {
		return "/"
	}
	if ref.Host != "" && ref.Host != r.Host {
		return "/"
	}
	target := ref.EscapedPath()
	if ref.RawQuery != "" {
		target += "?" + ref.RawQuery
	}
	return target
}
