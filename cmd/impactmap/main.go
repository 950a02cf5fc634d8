package main

import (
	"oss.terrastruct.com/impactmap/imcli"
	"oss.terrastruct.com/impactmap/lib/xmain"
)

func main() {
	xmain.Main(imcli.Run)
}
