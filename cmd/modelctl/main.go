// Package main provides an offline CLI for training, inspecting, and
// exporting character models without running the API server.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/charquest/ml-service/internal/characters"
	"github.com/charquest/ml-service/internal/charts"
	"github.com/charquest/ml-service/internal/ml"
	"github.com/charquest/ml-service/internal/storage"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "train":
		cmdTrain(os.Args[2:])
	case "inspect":
		cmdInspect(os.Args[2:])
	case "predict":
		cmdPredict(os.Args[2:])
	case "encrypt":
		cmdEncrypt(os.Args[2:])
	case "decrypt":
		cmdDecrypt(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: modelctl <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  train    Train a model from a characters JSON file")
	fmt.Fprintln(os.Stderr, "  inspect  Print rules and importances of a saved model")
	fmt.Fprintln(os.Stderr, "  predict  Predict character and difficulty for a record")
	fmt.Fprintln(os.Stderr, "  encrypt  Encrypt a saved model file for export")
	fmt.Fprintln(os.Stderr, "  decrypt  Decrypt an exported model file")
}

func cmdTrain(args []string) {
	fs := flag.NewFlagSet("train", flag.ExitOnError)
	charactersPath := fs.String("characters", "", "Characters JSON file (required)")
	out := fs.String("out", "model.json", "Output model file")
	maxDepth := fs.Int("max-depth", 10, "Decision tree depth limit")
	vocabSize := fs.Int("vocab-size", 50, "TF-IDF vocabulary limit")
	seed := fs.Int64("seed", 42, "Split shuffle seed")
	_ = fs.Parse(args) //nolint:errcheck // ExitOnError

	if *charactersPath == "" {
		log.Fatal("train: -characters is required")
	}

	records, err := characters.LoadFile(*charactersPath)
	if err != nil {
		log.Fatalf("Failed to load characters: %v", err)
	}
	log.Printf("Loaded %d characters from %s", len(records), *charactersPath)

	cfg := ml.DefaultModelConfig()
	cfg.Tree.MaxDepth = *maxDepth
	cfg.VocabSize = *vocabSize
	cfg.Seed = *seed

	model := ml.NewCharacterTree(cfg)
	metrics, err := model.Train(records)
	if err != nil {
		log.Fatalf("Training failed: %v", err)
	}

	printJSON(metrics)
	if metrics.DegradedSplit {
		log.Print("Warning: data set too small for a genuine train/test split")
	}

	if err := model.SaveFile(*out); err != nil {
		log.Fatalf("Failed to save model: %v", err)
	}
	log.Printf("Model saved to %s", *out)
}

func cmdInspect(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	modelPath := fs.String("model", "model.json", "Saved model file")
	rulesDepth := fs.Int("rules-depth", 3, "Decision rule depth limit")
	topN := fs.Int("top-n", 10, "Feature importance count")
	chartPath := fs.String("chart", "", "Write the importance chart HTML to this path")
	openChart := fs.Bool("open", false, "Open the chart in a browser")
	_ = fs.Parse(args) //nolint:errcheck // ExitOnError

	model := loadModel(*modelPath)

	info := model.Info()
	printJSON(info)

	rules, err := model.DecisionRules(*rulesDepth)
	if err != nil {
		log.Fatalf("Failed to extract rules: %v", err)
	}
	fmt.Println("Decision rules:")
	fmt.Println(rules)

	ranked, err := model.FeatureImportance(*topN)
	if err != nil {
		log.Fatalf("Failed to rank features: %v", err)
	}
	fmt.Println("Feature importance:")
	for _, fi := range ranked {
		fmt.Printf("  %-24s %.4f\n", fi.Feature, fi.Importance)
	}

	if *chartPath != "" {
		rendered, err := model.ImportanceChart(*topN)
		if err != nil {
			log.Fatalf("Failed to render chart: %v", err)
		}
		if err := charts.WriteFile(rendered, *chartPath); err != nil {
			log.Fatalf("Failed to write chart: %v", err)
		}
		log.Printf("Importance chart written to %s", *chartPath)

		if *openChart {
			if err := charts.OpenInBrowser(*chartPath); err != nil {
				log.Printf("Failed to open browser: %v", err)
			}
		}
	}
}

func cmdPredict(args []string) {
	fs := flag.NewFlagSet("predict", flag.ExitOnError)
	modelPath := fs.String("model", "model.json", "Saved model file")
	recordJSON := fs.String("record", "", "Character record as JSON (required)")
	topK := fs.Int("top-k", 3, "Number of ranked candidates")
	_ = fs.Parse(args) //nolint:errcheck // ExitOnError

	if *recordJSON == "" {
		log.Fatal("predict: -record is required")
	}

	var record characters.Character
	if err := json.Unmarshal([]byte(*recordJSON), &record); err != nil {
		log.Fatalf("Invalid record JSON: %v", err)
	}

	model := loadModel(*modelPath)

	predictions, err := model.PredictCharacter(record, *topK)
	if err != nil {
		log.Fatalf("Prediction failed: %v", err)
	}
	printJSON(predictions)

	difficulty, err := model.PredictDifficulty(record)
	if err != nil {
		log.Fatalf("Difficulty prediction failed: %v", err)
	}
	fmt.Printf("Difficulty: %.2f\n", difficulty)
}

func cmdEncrypt(args []string) {
	fs := flag.NewFlagSet("encrypt", flag.ExitOnError)
	in := fs.String("in", "model.json", "Model file to encrypt")
	out := fs.String("out", "model.json.enc", "Encrypted output file")
	password := fs.String("password", "", "Encryption password (required)")
	_ = fs.Parse(args) //nolint:errcheck // ExitOnError

	if *password == "" {
		log.Fatal("encrypt: -password is required")
	}

	cfg := storage.DefaultEncryptionConfig(*password)
	if err := storage.EncryptFile(*in, *out, cfg); err != nil {
		log.Fatalf("Encryption failed: %v", err)
	}
	log.Printf("Encrypted model written to %s", *out)
}

func cmdDecrypt(args []string) {
	fs := flag.NewFlagSet("decrypt", flag.ExitOnError)
	in := fs.String("in", "model.json.enc", "Encrypted model file")
	out := fs.String("out", "model.json", "Decrypted output file")
	password := fs.String("password", "", "Encryption password (required)")
	_ = fs.Parse(args) //nolint:errcheck // ExitOnError

	if *password == "" {
		log.Fatal("decrypt: -password is required")
	}

	cfg := storage.DefaultEncryptionConfig(*password)
	if err := storage.DecryptFile(*in, *out, cfg); err != nil {
		log.Fatalf("Decryption failed: %v", err)
	}
	log.Printf("Decrypted model written to %s", *out)
}

func loadModel(path string) *ml.CharacterTree {
	model := ml.NewCharacterTree(nil)
	if err := model.LoadFile(path); err != nil {
		log.Fatalf("Failed to load model from %s: %v", path, err)
	}
	return model
}

func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("Failed to encode output: %v", err)
	}
	fmt.Println(string(data))
}
