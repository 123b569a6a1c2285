package render

import (
	"html/template"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/cuemby/sheetsite/pkg/types"
)

// ShellData is everything the page shell needs besides the blocks
type ShellData struct {
	Global types.GlobalConfig
	Page   *types.PageEntity
	Blocks []Block
	// Path is the visitor's slug; defaults to the page slug
	Path    string
	Variant string
	// Beacon enables the client signal script
	Beacon bool
}

// tokenPattern limits theme tokens to characters valid in HSL triples,
// hex colors and lengths
var tokenPattern = regexp.MustCompile(`^[0-9A-Za-z.%# ,()-]{1,64}$`)

// ThemeCSS returns the custom property declarations for a page's theme
// overrides. Tokens outside the safe character set are dropped.
func ThemeCSS(t *types.ThemeOverrides) template.CSS {
	if t.IsZero() {
		return ""
	}
	var decls []string
	if tokenPattern.MatchString(t.PrimaryColor) {
		decls = append(decls, "--primary: "+t.PrimaryColor+";", "--ring: "+t.PrimaryColor+";")
	}
	if tokenPattern.MatchString(t.Radius) {
		decls = append(decls, "--radius: "+t.Radius+";")
	}
	return template.CSS(strings.Join(decls, " "))
}

// Title builds the document title, "<metaTitle> | <companyName>"
func Title(page *types.PageEntity, global types.GlobalConfig) string {
	if page == nil || page.MetaTitle == "" {
		return global.CompanyName
	}
	if page.MetaTitle == global.CompanyName {
		return page.MetaTitle
	}
	return page.MetaTitle + " | " + global.CompanyName
}

// Shell writes the full HTML document for a page
func Shell(w io.Writer, d ShellData) error {
	var theme *types.ThemeOverrides
	var description, path string
	if d.Page != nil {
		theme = d.Page.ThemeOverrides
		description = d.Page.MetaDescription
		path = d.Page.Slug
	}
	if d.Path != "" {
		path = d.Path
	}
	return templates.ExecuteTemplate(w, "shell", struct {
		Global      types.GlobalConfig
		Title       string
		Description string
		ThemeCSS    template.CSS
		Blocks      []Block
		Path        string
		Variant     string
		Beacon      bool
		Year        int
	}{
		Global:      d.Global,
		Title:       Title(d.Page, d.Global),
		Description: description,
		ThemeCSS:    ThemeCSS(theme),
		Blocks:      d.Blocks,
		Path:        path,
		Variant:     d.Variant,
		Beacon:      d.Beacon,
		Year:        time.Now().Year(),
	})
}

// NotFound writes the terminal not-found document
func NotFound(w io.Writer, global types.GlobalConfig, path string) error {
	return templates.ExecuteTemplate(w, "not_found", struct {
		Global types.GlobalConfig
		Path   string
	}{global, path})
}
