package theme

import (
	"fmt"
)

// Banner returns the CLI banner.
func Banner() string {
	const blue = "\033[34m"
	const cyan = "\033[36m"
	const reset = "\033[0m"

	art := "" +
		blue + "   _         _          _ _      _   \n" + reset +
		blue + "  | |__  ___| | ___   _| (_)_ __ | | __\n" + reset +
		blue + "  | '_ \\/ __| |/ / | | | | | '_ \\| |/ /\n" + reset +
		cyan + "  | |_) \\__ \\   <| |_| | | | | | |   < \n" + reset +
		cyan + "  |_.__/|___/_|\\_\\\\__, |_|_|_| |_|_|\\_\\\n" + reset +
		cyan + "                  |___/               \n" + reset +
		"   clean pages for Bluesky posts and threads\n"
	return art
}

// PrintBanner prints the banner to stdout.
func PrintBanner() {
	fmt.Print(Banner())
}
