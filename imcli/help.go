package imcli

import (
	"fmt"
	"path/filepath"

	"oss.terrastruct.com/impactmap/imexport"
	"oss.terrastruct.com/impactmap/lib/version"
	"oss.terrastruct.com/impactmap/lib/xmain"
)

func help(ms *xmain.State) {
	fmt.Fprintf(ms.Stdout, `%[1]s %[2]s
Usage:
  %[1]s [serve] [--theme=0] [seed.json]
  %[1]s render [--theme=0] [seed.json] out.png | out.svg
  %[1]s themes
  %[1]s version

%[1]s serves an impact map editor in your browser. Nodes and the free text block are edited
live and the download button saves the diagram as %[4]s.

seed.json optionally seeds the diagram and the editor reloads it when it changes on disk:
  {"nodes": ["Premium Site", "Faster Checkout"], "text": "Revenue"}

render writes the diagram to out.png or out.svg. Use - to read the seed from stdin or to write
to stdout.

Flags:
%[3]s

Subcommands:
  %[1]s serve - Serve the editor (default)
  %[1]s render - Render a seed file to PNG or SVG
  %[1]s themes - Lists available themes
  %[1]s version - Print the version
`, filepath.Base(ms.Name), version.Version, ms.Opts.Defaults(), imexport.Filename)
}
