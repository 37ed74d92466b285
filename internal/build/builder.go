package build

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/sirupsen/logrus"

	"github.com/jonathan/boot-release/internal/logging"
	"github.com/jonathan/boot-release/internal/types"
)

// Builder invokes the external build tool for one platform and returns the
// path of the produced file, or an error if the tool failed.
type Builder interface {
	Build(ctx context.Context, platform types.PlatformDescriptor) (string, error)
}

// BuilderFunc adapts a function to the Builder interface
type BuilderFunc func(ctx context.Context, platform types.PlatformDescriptor) (string, error)

// Build implements Builder
func (f BuilderFunc) Build(ctx context.Context, platform types.PlatformDescriptor) (string, error) {
	return f(ctx, platform)
}

const (
	// DefaultOutputDir is where cargo places release binaries for a target
	DefaultOutputDir = "target/{{.Target}}/release"

	// outputTailBytes bounds how much build output is kept on a BuildFailure
	outputTailBytes = 4096
)

// DefaultCommand builds the boot binary for the descriptor's target triple
func DefaultCommand() []string {
	return []string{"cargo", "build", "--release", "--target", "{{.Target}}"}
}

// CommandConfig configures a CommandBuilder
type CommandConfig struct {
	Command   []string          // argv, each element a text/template over the descriptor
	WorkDir   string            // Source checkout the command runs in
	OutputDir string            // Template, relative to WorkDir, holding raw_artifact_name
	Env       map[string]string // Extra environment for every platform
	LogDir    string            // If set, each platform's output is written to <LogDir>/<platform_id>.log
}

// templateData is what command and output templates see
type templateData struct {
	PlatformID         string
	Target             string
	RawArtifactName    string
	PublishedAssetName string
}

// CommandBuilder runs an external build command as a subprocess
type CommandBuilder struct {
	cfg       CommandConfig
	argv      []*template.Template
	outputDir *template.Template
	log       logging.ContextLogger
}

// NewCommandBuilder parses the command templates
func NewCommandBuilder(cfg CommandConfig, logger *logrus.Logger) (*CommandBuilder, error) {
	if len(cfg.Command) == 0 {
		cfg.Command = DefaultCommand()
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = DefaultOutputDir
	}

	b := &CommandBuilder{cfg: cfg, log: logging.NewContextLogger(logger, "build").InStruct("CommandBuilder")}
	for i, arg := range cfg.Command {
		tmpl, err := template.New(fmt.Sprintf("arg%d", i)).Option("missingkey=error").Parse(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid build command argument %q: %w", arg, err)
		}
		b.argv = append(b.argv, tmpl)
	}

	tmpl, err := template.New("output_dir").Option("missingkey=error").Parse(cfg.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("invalid output directory %q: %w", cfg.OutputDir, err)
	}
	b.outputDir = tmpl

	return b, nil
}

func render(tmpl *template.Template, data templateData) (string, error) {
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// Build implements Builder
func (b *CommandBuilder) Build(ctx context.Context, platform types.PlatformDescriptor) (string, error) {
	log := b.log.InFunc("Build").WithPlatform(platform.PlatformID)
	data := templateData{
		PlatformID:         platform.PlatformID,
		Target:             platform.Target,
		RawArtifactName:    platform.RawArtifactName,
		PublishedAssetName: platform.PublishedAssetName,
	}

	args := make([]string, 0, len(b.argv))
	for _, tmpl := range b.argv {
		arg, err := render(tmpl, data)
		if err != nil {
			return "", &BuildFailure{PlatformID: platform.PlatformID, Message: "failed to render build command", ExitCode: -1, Cause: err}
		}
		args = append(args, arg)
	}

	outDir, err := render(b.outputDir, data)
	if err != nil {
		return "", &BuildFailure{PlatformID: platform.PlatformID, Message: "failed to render output directory", ExitCode: -1, Cause: err}
	}
	artifactPath := filepath.Join(b.cfg.WorkDir, outDir, platform.RawArtifactName)

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = b.cfg.WorkDir
	cmd.Env = b.environment(platform)

	var output bytes.Buffer
	var sink io.Writer = &output
	if b.cfg.LogDir != "" {
		logFile, err := b.openLog(platform.PlatformID)
		if err != nil {
			log.WithError(err).Warn("Could not open build log; continuing without it")
		} else {
			defer func() {
				_ = logFile.Close()
			}()
			sink = io.MultiWriter(&output, logFile)
		}
	}
	cmd.Stdout = sink
	cmd.Stderr = sink

	log.WithField("command", strings.Join(args, " ")).Debug("Running build command")
	if err := cmd.Run(); err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return "", &BuildFailure{
			PlatformID: platform.PlatformID,
			Message:    "build command failed",
			ExitCode:   exitCode,
			Output:     tail(output.String(), outputTailBytes),
			Cause:      err,
		}
	}

	info, err := os.Stat(artifactPath)
	if err != nil {
		return "", &BuildFailure{
			PlatformID: platform.PlatformID,
			Message:    fmt.Sprintf("artifact not produced at %s", artifactPath),
			Output:     tail(output.String(), outputTailBytes),
			Cause:      err,
		}
	}
	if !info.Mode().IsRegular() {
		return "", &BuildFailure{PlatformID: platform.PlatformID, Message: fmt.Sprintf("%s is not a regular file", artifactPath)}
	}

	return artifactPath, nil
}

func (b *CommandBuilder) environment(platform types.PlatformDescriptor) []string {
	env := os.Environ()
	env = append(env,
		"TARGET_PLATFORM="+platform.PlatformID,
		"TARGET_TRIPLE="+platform.Target,
	)
	for k, v := range b.cfg.Env {
		env = append(env, k+"="+v)
	}
	// Descriptor values win over global ones since later entries take precedence
	for k, v := range platform.Env {
		env = append(env, k+"="+v)
	}
	return env
}

func (b *CommandBuilder) openLog(platformID string) (*os.File, error) {
	if err := os.MkdirAll(b.cfg.LogDir, 0755); err != nil {
		return nil, err
	}
	return os.Create(filepath.Join(b.cfg.LogDir, platformID+".log"))
}

// tail returns at most the last n bytes of s
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
