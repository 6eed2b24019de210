// Command moody renders template files from the command line and serves
// template directories over HTTP during development.
//
//	moody render page.html --dir templates --data page.json
//	moody serve templates --addr :9812
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	moody "github.com/etianen/moody-templates"
	"github.com/etianen/moody-templates/data"
)

var rootCmd = cobra.Command{
	Use:   "moody",
	Short: "Render moody templates",
}

var (
	renderDir        string
	renderData       string
	renderOut        string
	renderAutoescape string
)

var renderCmd = cobra.Command{
	Use:   "render [template]",
	Short: "Render a template to stdout or a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		loader, err := newLoader(renderDir, renderAutoescape)
		if err != nil {
			return err
		}
		vars, err := loadVars(renderData)
		if err != nil {
			return err
		}
		tmpl, err := loader.Load(args[0])
		if err != nil {
			return err
		}
		output, err := tmpl.Render(vars)
		if err != nil {
			return err
		}
		if renderOut == "" {
			_, err := io.WriteString(cmd.OutOrStdout(), output)
			return err
		}
		return atomic.WriteFile(renderOut, strings.NewReader(output))
	},
}

func init() {
	renderCmd.Flags().StringVar(&renderDir, "dir", ".", "directory to load templates from")
	renderCmd.Flags().StringVar(&renderData, "data", "", "JSON, YAML or TOML file of template variables")
	renderCmd.Flags().StringVar(&renderOut, "out", "", "write output to this file instead of stdout")
	renderCmd.Flags().StringVar(&renderAutoescape, "autoescape", "auto", `autoescape mode: "on", "off" or "auto"`)
	rootCmd.AddCommand(&renderCmd)
}

// newLoader builds a directory loader with the autoescape mode from the
// command line. In "auto" mode escaping is decided by file extension.
func newLoader(dir, autoescape string) (*moody.Loader, error) {
	var loader = moody.NewLoader(moody.DirectorySource{Dir: dir})
	switch autoescape {
	case "on":
		loader.WithAutoescape(true)
	case "off":
		loader.WithAutoescape(false)
	case "auto":
	default:
		return nil, fmt.Errorf("invalid autoescape mode %q (expected on, off or auto)", autoescape)
	}
	return loader, nil
}

// loadVars reads template variables from a JSON, YAML or TOML file, decided
// by extension. An empty path means no variables.
func loadVars(path string) (data.Map, error) {
	if path == "" {
		return nil, nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var vars map[string]interface{}
	switch filepath.Ext(path) {
	case ".json":
		err = json.Unmarshal(content, &vars)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(content, &vars)
	case ".toml":
		err = toml.Unmarshal(content, &vars)
	default:
		return nil, fmt.Errorf("unsupported data file %q (expected .json, .yaml or .toml)", path)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %v", path, err)
	}
	if vars == nil {
		return nil, nil
	}
	return data.New(vars).(data.Map), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
