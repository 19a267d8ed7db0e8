// Package inspect talks to the system under inspection: it enumerates the
// resource types the system exposes and fetches a descriptor for each one.
package inspect

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/capscanio/capscan/internal/config"
	"github.com/capscanio/capscan/pkg/domain/shared"
	"github.com/capscanio/capscan/pkg/logger"
)

// Inspector enumerates and describes resource types.
type Inspector interface {
	// List returns the names of all discoverable resource types.
	List(ctx context.Context) ([]string, error)

	// Describe returns the descriptor text for one resource type.
	Describe(ctx context.Context, name string) (string, error)
}

// Errors
var (
	// ErrSystemUnreachable means the inspected system could not be queried
	// at all; fatal for a whole-system enumeration.
	ErrSystemUnreachable = fmt.Errorf("inspected system unreachable: %w", shared.ErrUnavailable)

	// ErrDescriptorUnavailable means one item's descriptor could not be
	// fetched; terminal for that item only.
	ErrDescriptorUnavailable = fmt.Errorf("descriptor unavailable: %w", shared.ErrUnavailable)
)

// CommandInspector shells out to a configured CLI to inspect the system.
// Listing runs `<command> <list-args>` and expects one resource type name
// per output line; describing runs `<command> <describe-args> <name>`.
type CommandInspector struct {
	command      string
	listArgs     []string
	describeArgs []string
	timeout      time.Duration
	logger       *logger.Logger
}

// NewCommandInspector creates a new CommandInspector.
func NewCommandInspector(cfg config.InspectConfig, log *logger.Logger) (*CommandInspector, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("inspect command is required")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &CommandInspector{
		command:      cfg.Command,
		listArgs:     cfg.ListArgs,
		describeArgs: cfg.DescribeArgs,
		timeout:      timeout,
		logger:       log.With("component", "inspector"),
	}, nil
}

// List returns the names of all discoverable resource types.
func (i *CommandInspector) List(ctx context.Context) ([]string, error) {
	out, err := i.run(ctx, i.listArgs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSystemUnreachable, err)
	}

	var names []string
	for _, line := range strings.Split(out, "\n") {
		if name := strings.TrimSpace(line); name != "" {
			names = append(names, name)
		}
	}

	i.logger.Debug("listed resource types", "count", len(names))
	return names, nil
}

// Describe returns the descriptor text for one resource type.
func (i *CommandInspector) Describe(ctx context.Context, name string) (string, error) {
	args := make([]string, 0, len(i.describeArgs)+1)
	args = append(args, i.describeArgs...)
	args = append(args, name)

	out, err := i.run(ctx, args)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrDescriptorUnavailable, name, err)
	}
	if strings.TrimSpace(out) == "" {
		return "", fmt.Errorf("%w: %s: empty descriptor", ErrDescriptorUnavailable, name)
	}
	return out, nil
}

func (i *CommandInspector) run(ctx context.Context, args []string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, i.command, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("%v: %s", err, msg)
		}
		return "", err
	}
	return stdout.String(), nil
}
