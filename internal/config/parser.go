package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	lua "github.com/yuin/gopher-lua"

	"github.com/hyprwatch/shadow/internal/logging"
	"github.com/hyprwatch/shadow/internal/platform"
)

// flagOnlyKeys may never come from a file.
var flagOnlyKeys = map[string]string{
	"org_token":   "use --org-token or SHADOW_ORG_TOKEN",
	"skip_verify": "pass --skip-verify on the command line",
}

// Parser evaluates shadow.lua files in a sandboxed Lua state.
type Parser struct {
	detector platform.Detector
	logger   logrus.FieldLogger
}

// NewParser returns a parser that exposes detector results as the
// platform global. A nil detector leaves platform undefined.
func NewParser(detector platform.Detector) *Parser {
	return &Parser{detector: detector, logger: logging.Discard()}
}

// WithLogger sets the logger used for warnings about the file contents.
func (p *Parser) WithLogger(logger logrus.FieldLogger) *Parser {
	p.logger = logging.OrDiscard(logger)
	return p
}

// ParseString evaluates luaCode and extracts the shadow table. Evaluation
// is bounded by ParseTimeout.
func (p *Parser) ParseString(ctx context.Context, luaCode string) (*File, error) {
	ctx, cancel := context.WithTimeout(ctx, ParseTimeout)
	defer cancel()

	L := newSandboxedVM()
	defer L.Close()
	L.SetContext(ctx)

	if p.detector != nil {
		platformInfo, err := p.detector.Detect(ctx)
		if err != nil {
			return nil, fmt.Errorf("platform detection failed: %w", err)
		}
		if err := platform.InjectPlatformTable(L, platformInfo); err != nil {
			return nil, fmt.Errorf("inject platform table: %w", err)
		}
	}

	if err := L.DoString(luaCode); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, &ParseError{Message: "config evaluation timed out", Detail: ctxErr.Error()}
		}
		return nil, &ParseError{
			Message: "Lua syntax error",
			Detail:  err.Error(),
		}
	}

	return extractFile(L)
}

// ParseFile reads and parses the Lua file at path. Literal secrets in the
// file are reported as warnings.
func (p *Parser) ParseFile(ctx context.Context, path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxConfigFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if len(data) > MaxConfigFileSize {
		return nil, &ParseError{
			Message: "config file too large",
			Detail:  fmt.Sprintf("%s exceeds %d bytes", path, MaxConfigFileSize),
		}
	}

	for _, finding := range ScanSecrets(string(data)) {
		p.logger.WithFields(logrus.Fields{
			"path":    path,
			"line":    finding.Line,
			"kind":    finding.Kind,
			"preview": finding.Preview,
		}).Warn(finding.Hint)
	}

	return p.ParseString(ctx, string(data))
}

// LoadFile parses path if it exists. A missing file is an error only when
// required is set; otherwise LoadFile returns nil, nil.
func (p *Parser) LoadFile(ctx context.Context, path string, required bool) (*File, error) {
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil, nil
		}
		return nil, fmt.Errorf("config file: %w", err)
	}
	return p.ParseFile(ctx, path)
}

// ParseError pairs a short message for the operator with the raw Lua error.
type ParseError struct {
	Message string
	Detail  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Message, e.Detail)
}

// extractFile reads the global "shadow" table.
func extractFile(L *lua.LState) (*File, error) {
	global := L.GetGlobal(luaGlobalShadow)
	if global.Type() != lua.LTTable {
		return nil, &ParseError{
			Message: "missing or invalid 'shadow' table",
			Detail:  fmt.Sprintf("expected table, got %s", global.Type()),
		}
	}
	table := global.(*lua.LTable)

	if err := checkKeys(table); err != nil {
		return nil, err
	}

	f := &File{}
	var err error
	if f.Server, err = stringField(table, luaFieldServer); err != nil {
		return nil, err
	}
	if f.DataDir, err = stringField(table, luaFieldDataDir); err != nil {
		return nil, err
	}
	if f.CACertPath, err = stringField(table, luaFieldCACert); err != nil {
		return nil, err
	}
	if f.OsquerydPath, err = stringField(table, luaFieldOsquerydPath); err != nil {
		return nil, err
	}
	if f.HostIdentifier, err = stringField(table, luaFieldHostIdentifier); err != nil {
		return nil, err
	}
	if f.DistributedInterval, err = intField(table, luaFieldDistributedInterval); err != nil {
		return nil, err
	}
	if f.Verbose, err = boolField(table, luaFieldVerbose); err != nil {
		return nil, err
	}

	return f, nil
}

// checkKeys rejects unknown and flag-only keys so typos are not silently
// ignored.
func checkKeys(table *lua.LTable) error {
	known := map[string]bool{
		luaFieldServer:              true,
		luaFieldDataDir:             true,
		luaFieldCACert:              true,
		luaFieldOsquerydPath:        true,
		luaFieldHostIdentifier:      true,
		luaFieldDistributedInterval: true,
		luaFieldVerbose:             true,
	}

	var unknown []string
	var flagOnly error
	table.ForEach(func(key, _ lua.LValue) {
		name := key.String()
		if hint, ok := flagOnlyKeys[name]; ok && flagOnly == nil {
			flagOnly = &ParseError{
				Message: fmt.Sprintf("'%s' cannot be set in the config file", name),
				Detail:  hint,
			}
			return
		}
		if key.Type() != lua.LTString || !known[name] {
			unknown = append(unknown, name)
		}
	})

	if flagOnly != nil {
		return flagOnly
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return &ParseError{
			Message: "unknown keys in 'shadow' table",
			Detail:  strings.Join(unknown, ", "),
		}
	}
	return nil
}

func typeError(field string, want string, got lua.LValue) error {
	return &ParseError{
		Message: fmt.Sprintf("invalid value for shadow.%s", field),
		Detail:  fmt.Sprintf("expected %s, got %s", want, got.Type()),
	}
}

func stringField(table *lua.LTable, field string) (*string, error) {
	v := table.RawGetString(field)
	switch v.Type() {
	case lua.LTNil:
		return nil, nil
	case lua.LTString:
		s := v.String()
		return &s, nil
	default:
		return nil, typeError(field, "string", v)
	}
}

func intField(table *lua.LTable, field string) (*int, error) {
	v := table.RawGetString(field)
	switch v.Type() {
	case lua.LTNil:
		return nil, nil
	case lua.LTNumber:
		n := float64(lua.LVAsNumber(v))
		if n != math.Trunc(n) || n > math.MaxInt32 || n < math.MinInt32 {
			return nil, typeError(field, "integer", v)
		}
		i := int(n)
		return &i, nil
	default:
		return nil, typeError(field, "integer", v)
	}
}

func boolField(table *lua.LTable, field string) (*bool, error) {
	v := table.RawGetString(field)
	switch v.Type() {
	case lua.LTNil:
		return nil, nil
	case lua.LTBool:
		b := bool(v.(lua.LBool))
		return &b, nil
	default:
		return nil, typeError(field, "boolean", v)
	}
}

// FormatError renders err for the terminal. Non-verbose output drops the
// Lua stack traceback.
func FormatError(err error, verbose bool) string {
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		if verbose {
			return fmt.Sprintf("%s\n\nDetails:\n%s", parseErr.Message, parseErr.Detail)
		}
		detail := parseErr.Detail
		if idx := strings.Index(detail, "stack traceback"); idx > 0 {
			detail = strings.TrimSpace(detail[:idx])
		}
		return fmt.Sprintf("%s: %s", parseErr.Message, detail)
	}
	return err.Error()
}
