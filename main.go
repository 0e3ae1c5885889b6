package main

import (
	"embed"
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/menu"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"github.com/wailsapp/wails/v2/pkg/options/mac"

	blockdocApp "blockdoc/internal/app"
)

//go:embed all:frontend/dist
var assets embed.FS

func main() {
	serveMCP := pflag.Bool("mcp", false, "serve the agent tools on stdin/stdout instead of opening a window")
	storageDir := pflag.String("storage-dir", "", "document directory (overrides config)")
	pflag.Parse()

	if *serveMCP {
		if err := blockdocApp.ServeMCP(*storageDir); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}
		return
	}

	app := blockdocApp.New(*storageDir)

	// macOS needs an Edit menu for Cmd+C/V/X/A to reach the WebView
	appMenu := menu.NewMenu()
	appMenu.Append(menu.EditMenu())

	err := wails.Run(&options.App{
		Title:     "BlockDoc",
		Width:     1440,
		Height:    900,
		MinWidth:  800,
		MinHeight: 600,
		AssetServer: &assetserver.Options{
			Assets: assets,
		},
		BackgroundColour: &options.RGBA{R: 245, G: 245, B: 247, A: 1},
		Menu:             appMenu,
		OnStartup:        app.Startup,
		OnShutdown:       app.Shutdown,
		Bind: []interface{}{
			app,
		},
		Mac: &mac.Options{
			TitleBar: &mac.TitleBar{
				TitlebarAppearsTransparent: true,
				HideTitle:                  true,
				FullSizeContent:            true,
			},
			About: &mac.AboutInfo{
				Title:   "BlockDoc",
				Message: "Page-layout documents rendered to PDF",
			},
		},
	})

	if err != nil {
		println("Error:", err.Error())
	}
}
