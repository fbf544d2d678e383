package main

import (
	"flag"
	"fmt"
	"log"
)

// Version is set at build time via -ldflags
var Version = "dev"

var (
	configFile  = flag.String("config", "config.yaml", "Path to configuration file")
	dataDir     = flag.String("data-dir", ".", "Directory holding shape files, results and the analysis cache")
	serveMode   = flag.Bool("serve", false, "Run the MQTT + HTTP analysis service")
	analyzeArg  = flag.String("analyze", "", "Analyze one shape (file path or configured shape ID) and exit")
	analyzeAll  = flag.Bool("analyze-all", false, "Analyze every configured shape and exit")
	summaryArg  = flag.String("summary", "", "Print shape statistics (file path or configured shape ID) and exit")
	allPlanes   = flag.Bool("all-planes", false, "Report every significant mirror plane instead of only the best one")
	tolerance   = flag.Float64("tolerance", 0, "Coincidence tolerance override (0 uses config or default)")
	outputFile  = flag.String("out", "", "Write the analysis result JSON to this file (with -analyze)")
	svgFile     = flag.String("svg", "", "Write an SVG render to this file (with -analyze)")
	pngFile     = flag.String("png", "", "Write a PNG render to this file (with -analyze)")
	showVersion = flag.Bool("version", false, "Print version and exit")
	verbose     = flag.Bool("v", false, "Verbose logging (microsecond timestamps and file positions)")
)

func main() {
	flag.Parse()
	fmt.Printf("symscan version: %s\n", Version)

	if *showVersion {
		return
	}

	if *verbose {
		log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	}

	app := appFromFlags()

	if *summaryArg != "" {
		app.RunSummary(*summaryArg)
		return
	}

	if *analyzeArg != "" {
		app.RunAnalyze(*analyzeArg)
		return
	}

	if *analyzeAll {
		app.RunOnce()
		return
	}

	if *serveMode {
		app.RunService()
		return
	}

	fmt.Println("symscan - mirror symmetry detection for boundary representation solids")
	fmt.Println("Use -analyze SHAPE to analyze a shape file or configured shape ID")
	fmt.Println("Use -analyze-all to analyze every configured shape")
	fmt.Println("Use -summary SHAPE to print shape statistics")
	fmt.Println("Use -serve to run the MQTT + HTTP analysis service")
	fmt.Println("\nConfiguration:")
	fmt.Println("  config.yaml - MQTT broker, shapes, analysis and render settings")
	fmt.Println("  .analysis-cache.json - cached per-shape results (service mode)")
}

// appFromFlags builds the App from the parsed CLI flags.
func appFromFlags() *App {
	app := NewApp()
	app.ConfigFile = *configFile
	app.DataDir = *dataDir
	app.AllPlanes = *allPlanes
	app.Tolerance = *tolerance
	app.OutputFile = *outputFile
	app.SVGFile = *svgFile
	app.PNGFile = *pngFile
	return app
}
