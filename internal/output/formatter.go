package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"

	"github.com/charmbracelet/lipgloss/v2"
	"github.com/muesli/termenv"
)

// Formatter is the interface for output formatting
type Formatter interface {
	Print(data any) error
	PrintList(items any, columns []Column) error
	PrintError(err error)
	PrintHint(msg string)
}

// Column defines a column for table/list output
type Column struct {
	Name  string // Display name
	Key   string // Struct field name or map key
	Width int    // Width for rich mode (0 = auto)
}

// New creates a formatter for the specified mode writing to stdout/stderr
func New(mode string) Formatter {
	return NewTo(mode, os.Stdout, os.Stderr)
}

// NewTo creates a formatter for the specified mode writing to out and errw
func NewTo(mode string, out, errw io.Writer) Formatter {
	switch mode {
	case "json":
		return &jsonFormatter{out: out, err: errw}
	case "rich":
		return &richFormatter{out: out, err: errw, profile: termenv.ColorProfile()}
	default:
		return &plainFormatter{out: out, err: errw}
	}
}

// jsonFormatter outputs JSON
type jsonFormatter struct {
	out, err io.Writer
}

func (f *jsonFormatter) Print(data any) error {
	enc := json.NewEncoder(f.out)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func (f *jsonFormatter) PrintList(items any, columns []Column) error {
	v := reflect.ValueOf(items)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	count := 0
	if v.Kind() == reflect.Slice {
		count = v.Len()
	}

	return f.Print(map[string]any{
		"data":  items,
		"count": count,
	})
}

func (f *jsonFormatter) PrintError(err error) {
	enc := json.NewEncoder(f.err)
	enc.SetIndent("", "  ")
	_ = enc.Encode(map[string]string{"error": err.Error()})
}

// Hints are for humans; JSON consumers get none.
func (f *jsonFormatter) PrintHint(msg string) {}

// plainFormatter outputs tab-separated values
type plainFormatter struct {
	out, err io.Writer
}

func (f *plainFormatter) Print(data any) error {
	for _, kv := range fields(data) {
		fmt.Fprintf(f.out, "%s\t%s\n", kv[0], kv[1])
	}
	return nil
}

func (f *plainFormatter) PrintList(items any, columns []Column) error {
	rows, err := rowsOf(items, columns)
	if err != nil {
		return err
	}

	headers := make([]string, len(columns))
	for i, col := range columns {
		headers[i] = col.Name
	}
	fmt.Fprintln(f.out, strings.Join(headers, "\t"))

	for _, row := range rows {
		values := make([]string, len(columns))
		for j, col := range columns {
			values[j] = row[col.Key]
		}
		fmt.Fprintln(f.out, strings.Join(values, "\t"))
	}
	return nil
}

func (f *plainFormatter) PrintError(err error) {
	fmt.Fprintf(f.err, "error: %v\n", err)
}

func (f *plainFormatter) PrintHint(msg string) {
	fmt.Fprintf(f.err, "hint: %v\n", msg)
}

// richFormatter outputs styled content for terminal
type richFormatter struct {
	out, err io.Writer
	profile  termenv.Profile
}

func (f *richFormatter) style(s lipgloss.Style) lipgloss.Style {
	if f.profile == termenv.Ascii {
		return lipgloss.NewStyle()
	}
	return s
}

func (f *richFormatter) Print(data any) error {
	keyStyle := f.style(lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("33")))
	valueStyle := f.style(lipgloss.NewStyle().Foreground(lipgloss.Color("15")))

	for _, kv := range fields(data) {
		fmt.Fprintf(f.out, "%s: %s\n", keyStyle.Render(kv[0]), valueStyle.Render(kv[1]))
	}
	return nil
}

func (f *richFormatter) PrintList(items any, columns []Column) error {
	rows, err := rowsOf(items, columns)
	if err != nil {
		return err
	}
	RenderTable(f.out, columns, rows)
	return nil
}

func (f *richFormatter) PrintError(err error) {
	errorStyle := f.style(lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("9")))

	fmt.Fprintln(f.err, errorStyle.Render("error: "+err.Error()))
}

func (f *richFormatter) PrintHint(msg string) {
	hintStyle := f.style(lipgloss.NewStyle().
		Faint(true).
		Foreground(lipgloss.Color("8")))

	fmt.Fprintln(f.err, hintStyle.Render("hint: "+msg))
}

// fields flattens a struct into name/value pairs, using json tag names and
// skipping fields tagged "-" and empty omitempty fields. Other values print
// as a single pair with an empty name.
func fields(data any) [][2]string {
	v := reflect.ValueOf(data)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return [][2]string{{"", fmt.Sprintf("%v", data)}}
	}

	var out [][2]string
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name := field.Name
		tag := field.Tag.Get("json")
		if tag == "-" {
			continue
		}
		if tagName, opts, _ := strings.Cut(tag, ","); tag != "" {
			if tagName != "" {
				name = tagName
			}
			if strings.Contains(opts, "omitempty") && v.Field(i).IsZero() {
				continue
			}
		}
		out = append(out, [2]string{name, fmt.Sprintf("%v", v.Field(i).Interface())})
	}
	return out
}

// rowsOf converts a slice of structs or maps into rows keyed by column key.
func rowsOf(items any, columns []Column) ([]map[string]string, error) {
	v := reflect.ValueOf(items)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Slice {
		return nil, fmt.Errorf("PrintList requires a slice")
	}

	rows := make([]map[string]string, v.Len())
	for i := 0; i < v.Len(); i++ {
		item := v.Index(i)
		if item.Kind() == reflect.Ptr {
			item = item.Elem()
		}

		row := make(map[string]string)
		for _, col := range columns {
			switch item.Kind() {
			case reflect.Map:
				if mapVal := item.MapIndex(reflect.ValueOf(col.Key)); mapVal.IsValid() {
					row[col.Key] = fmt.Sprintf("%v", mapVal.Interface())
				}
			case reflect.Struct:
				if field := item.FieldByName(col.Key); field.IsValid() {
					row[col.Key] = fmt.Sprintf("%v", field.Interface())
				}
			}
		}
		rows[i] = row
	}
	return rows, nil
}
