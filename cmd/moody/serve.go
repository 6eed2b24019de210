package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	moody "github.com/etianen/moody-templates"
	"github.com/etianen/moody-templates/data"
	"github.com/etianen/moody-templates/errortypes"
)

var serveAddr string

var serveCmd = cobra.Command{
	Use:   "serve [dir]",
	Short: "Serve a template directory over HTTP for development",
	Long: `Serve renders templates straight from a directory, recompiling whenever
the files change. The URL path names the template and query parameters become
string variables, so

	http://localhost:9812/page.html?name=Bob

renders page.html with name set to "Bob".`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var loader = moody.NewLoader(moody.DirectorySource{Dir: args[0]}).WatchFiles(true)
		fmt.Fprintf(cmd.OutOrStdout(), "Serving %s on %s\n", args[0], serveAddr)
		return http.ListenAndServe(serveAddr, templateHandler(loader))
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":9812", "address to listen on")
	rootCmd.AddCommand(&serveCmd)
}

// templateHandler renders the template named by the URL path. Output is
// buffered so a render error can still turn into a 500.
func templateHandler(loader *moody.Loader) http.Handler {
	return http.HandlerFunc(func(res http.ResponseWriter, req *http.Request) {
		var name = strings.TrimPrefix(req.URL.Path, "/")
		if name == "" {
			name = "index.html"
		}
		tmpl, err := loader.Load(name)
		if err != nil {
			var notFound *errortypes.NotFoundError
			if errors.As(err, &notFound) {
				http.NotFound(res, req)
				return
			}
			http.Error(res, err.Error(), http.StatusInternalServerError)
			return
		}
		var vars = make(data.Map)
		for k, v := range req.URL.Query() {
			vars[k] = data.String(v[0])
		}
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, vars); err != nil {
			http.Error(res, err.Error(), http.StatusInternalServerError)
			return
		}
		io.Copy(res, &buf)
	})
}
