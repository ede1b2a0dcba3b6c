package common

import (
	"github.com/ternarybob/banner"
)

// AppName is the display name used in the banner and the Discord user agent
const AppName = "Decatholac Mango Tarnished"

// PrintBanner displays the application banner
func PrintBanner(version string) {
	banner.PrintSimple(AppName, version)
}
