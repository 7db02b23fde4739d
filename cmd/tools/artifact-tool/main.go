// cmd/tools/artifact-tool/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"passos-predictor/internal/batch"
	"passos-predictor/internal/common/logger"
	"passos-predictor/internal/inference"
	"passos-predictor/internal/ingest"
	"passos-predictor/pkg/artifact"
)

const (
	defaultModelPath = "models/pipeline_completo.json"
	defaultMetaPath  = "models/feature_names.json"
)

func main() {
	inspectCmd := flag.NewFlagSet("inspect", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	predictCmd := flag.NewFlagSet("predict", flag.ExitOnError)
	templateCmd, templateOut := newTemplateCommand()

	// Inspect command flags
	inspectModel := inspectCmd.String("model", defaultModelPath, "Path to the pipeline artifact")
	inspectMeta := inspectCmd.String("meta", defaultMetaPath, "Path to the metadata file")

	// Validate command flags
	validateModel := validateCmd.String("model", defaultModelPath, "Path to the pipeline artifact")

	// Predict command flags
	predictModel := predictCmd.String("model", defaultModelPath, "Path to the pipeline artifact")
	predictMeta := predictCmd.String("meta", defaultMetaPath, "Path to the metadata file")
	in := predictCmd.String("in", "", "Input file (.csv, .xlsx, .xls)")
	out := predictCmd.String("out", "", "Output CSV (default: predicoes_ponto_de_virada.csv next to the input)")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "inspect":
		inspectCmd.Parse(os.Args[2:])
		if err := inspect(*inspectModel, *inspectMeta); err != nil {
			fmt.Printf("Error inspecting artifact: %v\n", err)
			os.Exit(1)
		}

	case "validate":
		validateCmd.Parse(os.Args[2:])
		a, err := artifact.Load(*validateModel)
		if err != nil {
			fmt.Printf("Artifact validation failed: %v\n", err)
			os.Exit(1)
		}
		if _, err := inference.NewModel(a); err != nil {
			fmt.Printf("Artifact validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Artifact validation passed.")

	case "predict":
		predictCmd.Parse(os.Args[2:])
		if *in == "" {
			fmt.Println("Error: in is required for predict.")
			predictCmd.Usage()
			os.Exit(1)
		}
		if err := predict(*predictModel, *predictMeta, *in, *out); err != nil {
			fmt.Printf("Error predicting: %v\n", err)
			os.Exit(1)
		}

	case "template":
		templateCmd.Parse(os.Args[2:])
		if err := writeTemplate(*templateOut); err != nil {
			fmt.Printf("Error writing template: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Template written to %s\n", *templateOut)

	case "help":
		fallthrough
	default:
		help()
	}
}

func loadSnapshot(modelPath, metaPath string) (*inference.Snapshot, error) {
	loader := inference.NewLoader(modelPath, metaPath, nil, logger.NewNoOpLogger())
	snap := loader.Load(context.Background())
	if !snap.Loaded() {
		return nil, fmt.Errorf("failed to load %s: %w", modelPath, snap.LoadErr)
	}
	return snap, nil
}

func inspect(modelPath, metaPath string) error {
	a, err := artifact.Load(modelPath)
	if err != nil {
		return err
	}
	snap, err := loadSnapshot(modelPath, metaPath)
	if err != nil {
		return err
	}
	meta := snap.Metadata

	fmt.Printf("Artifact:  %s (version %s)\n", modelPath, a.Version)
	if a.TrainedAt != "" {
		fmt.Printf("Trained:   %s\n", a.TrainedAt)
	}
	fmt.Printf("Estimator: %s\n", a.Estimator.Type)
	fmt.Printf("Algorithm: %s\n", meta.Algorithm())
	fmt.Printf("AUC:       %s\n", meta.AUC())
	fmt.Printf("F1:        %s\n", meta.F1())
	fmt.Printf("Accuracy:  %s\n", meta.Accuracy())
	fmt.Printf("Encoded width: %d\n", a.EncodedWidth())

	fmt.Println("\nNumeric features:")
	for _, f := range a.Numeric {
		fmt.Printf("  %-16s impute=%-8g mean=%-8g scale=%g\n", f.Name, f.Impute, f.Mean, f.Scale)
	}
	fmt.Println("\nCategorical features:")
	for _, f := range a.Categorical {
		fmt.Printf("  %-16s impute=%-16q categories=%s\n", f.Name, f.Impute, strings.Join(f.Categories, ", "))
	}
	fmt.Printf("\nExpected columns: %s\n", strings.Join(meta.AllFeatures, ", "))
	return nil
}

func predict(modelPath, metaPath, in, out string) error {
	snap, err := loadSnapshot(modelPath, metaPath)
	if err != nil {
		return err
	}

	f, err := os.Open(in)
	if err != nil {
		return err
	}
	defer f.Close()

	table, err := ingest.Parse(filepath.Base(in), f)
	if err != nil {
		return err
	}

	svc := batch.NewService(inference.NewStaticLoader(snap), logger.NewNoOpLogger())
	result, err := svc.Run(context.Background(), filepath.Base(in), table)
	if err != nil {
		return err
	}

	if out == "" {
		out = filepath.Join(filepath.Dir(in), batch.ResultFileName)
	}
	w, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := batch.WriteCSV(w, result); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	if len(result.MissingColumns) > 0 {
		fmt.Printf("Missing columns (imputed): %s\n", strings.Join(result.MissingColumns, ", "))
	}
	fmt.Printf("Scored %d rows: %d Sim (%s), %d Não (%s)\n",
		result.KPIs.Total, result.KPIs.Yes, result.KPIs.YesPercent(),
		result.KPIs.No, result.KPIs.NoPercent())
	fmt.Printf("Results written to %s\n", out)
	return nil
}

// newTemplateCommand defines the template subcommand. Its default output
// name is the one the dashboard uses for the template download.
func newTemplateCommand() (*flag.FlagSet, *string) {
	cmd := flag.NewFlagSet("template", flag.ExitOnError)
	return cmd, cmd.String("out", batch.TemplateFileName, "Output CSV")
}

func writeTemplate(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := batch.WriteTemplate(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func help() {
	fmt.Println("Usage: artifact-tool <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  inspect   Print the pipeline's metadata and feature layout")
	fmt.Println("  validate  Check the artifact's structure")
	fmt.Println("  predict   Score a CSV/Excel file offline")
	fmt.Println("  template  Write the upload template")
	fmt.Println("  help      Show this help message")
}
