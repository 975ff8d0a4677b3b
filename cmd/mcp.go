package cmd

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"cadprobe/internal/appdirs"
	"cadprobe/internal/logging"
	"cadprobe/internal/tools"
)

// Version is reported to MCP clients.
var Version = "dev"

// path to the MCP debug log file, override with --log
var mcpLogPath string

var serveStdioFunc = func(s *server.MCPServer) error { return server.ServeStdio(s) }

// mcpCmd is the cobra subcommand which will start our MCP server.
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the browser session as MCP tools over stdio",
	Long: `Run an MCP server on stdin/stdout. The browser starts on the first tool
call and is shared by all calls; each call waits up to 30s for the session.`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	RootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().StringVarP(&mcpLogPath, "log", "l", "", "path to the MCP debug log file (default <logs dir>/mcp.log)")
}

func runMCP(cmd *cobra.Command, args []string) error {
	// stdout carries the protocol; everything else goes to stderr.
	cmd.SetOut(os.Stderr)

	cfg, _, err := setup(cmd)
	if err != nil {
		return err
	}

	var logOut io.Writer = cmd.ErrOrStderr()
	if f, err := openMCPLog(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: cannot open mcp log: %v\n", err)
	} else {
		defer f.Close()
		logOut = io.MultiWriter(cmd.ErrOrStderr(), f)
	}
	level := cfg.Logging.Level
	if Verbose {
		level = "debug"
	}
	logger := logging.New(level, logOut)

	artifacts, err := appdirs.ArtifactsDir()
	if err != nil {
		logger.Warn().Err(err).Msg("no artifacts dir; relative screenshot paths use the working directory")
	}
	tb := &tools.Toolbox{
		Open:        sessionOpener(cfg, logger),
		URL:         cfg.App.URL,
		Hook:        cfg.App.Hook,
		ObjectID:    cfg.App.ObjectID,
		Logger:      logger,
		ArtifactDir: artifacts,
	}
	tb.Install()
	defer func() {
		if err := tb.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close browser session")
		}
	}()

	logger.Info().Int("tools", len(tools.List())).Msg("serving MCP over stdio")
	return serveStdioFunc(newMCPServer())
}

func openMCPLog() (*os.File, error) {
	path := mcpLogPath
	if path == "" {
		dir, err := appdirs.LogsDir()
		if err != nil {
			return nil, err
		}
		if err := appdirs.EnsureDir(dir); err != nil {
			return nil, err
		}
		path = filepath.Join(dir, "mcp.log")
	}
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}

func newMCPServer() *server.MCPServer {
	s := server.NewMCPServer("cadprobe", Version, server.WithToolCapabilities(true))
	for _, def := range tools.List() {
		s.AddTool(buildMCPTool(def), toolHandler(def.Name))
	}
	return s
}

// buildMCPTool converts a tool definition into an mcp.Tool with its schema.
func buildMCPTool(def tools.Definition) mcp.Tool {
	opts := []mcp.ToolOption{mcp.WithDescription(def.Description)}
	for _, p := range def.Parameters {
		opts = append(opts, buildParamOption(p))
	}
	return mcp.NewTool(def.Name, opts...)
}

func buildParamOption(p tools.Parameter) mcp.ToolOption {
	var opts []mcp.PropertyOption
	if p.Description != "" {
		opts = append(opts, mcp.Description(p.Description))
	}
	if p.Required {
		opts = append(opts, mcp.Required())
	}
	switch p.Type.JSONType() {
	case "number":
		return mcp.WithNumber(p.Name, opts...)
	case "boolean":
		return mcp.WithBoolean(p.Name, opts...)
	case "array":
		arr := []mcp.PropertyOption{mcp.Items(map[string]interface{}{"type": "number"})}
		if p.Items > 0 {
			arr = append(arr, mcp.MinItems(p.Items), mcp.MaxItems(p.Items))
		}
		return mcp.WithArray(p.Name, append(arr, opts...)...)
	default:
		return mcp.WithString(p.Name, opts...)
	}
}

func toolHandler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, r mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res, err := withSession(func() (tools.Result, error) {
			return tools.Call(ctx, name, r.GetArguments())
		})
		if err != nil {
			return errorResult(fmt.Sprintf("%s failed: %v", name, err)), nil
		}
		return toolResult(res), nil
	}
}

func toolResult(res tools.Result) *mcp.CallToolResult {
	var content []mcp.Content
	if res.Text != "" {
		content = append(content, mcp.NewTextContent(res.Text))
	}
	if len(res.Binary) > 0 {
		content = append(content, mcp.NewImageContent(base64.StdEncoding.EncodeToString(res.Binary), res.ContentType))
	}
	if len(content) == 0 {
		content = append(content, mcp.NewTextContent("ok"))
	}
	return &mcp.CallToolResult{Content: content}
}

func errorResult(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(message),
		},
		IsError: true,
	}
}
