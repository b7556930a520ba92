package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/smartstudy-abroad/smartstudy/internal/logger"
	"github.com/smartstudy-abroad/smartstudy/internal/program"
)

var importCmd = &cobra.Command{
	Use:   "import <programs.json>",
	Short: "Seed the store from a JSON list of programs",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		importPrograms(args[0])
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}

// seedProgram is one entry of a seed file. Numbers may be given as numbers
// or strings and English requirements as text or as a test-to-score object.
type seedProgram struct {
	University         string `mapstructure:"university"`
	Degree             string `mapstructure:"degree"`
	Field              string `mapstructure:"field"`
	Country            string `mapstructure:"country"`
	TuitionFee         string `mapstructure:"tuition_fees"`
	GPARequirement     string `mapstructure:"gpa_requirement"`
	EnglishRequirement any    `mapstructure:"english_requirements"`
	TestRequirements   string `mapstructure:"test_requirements"`
	Scholarships       any    `mapstructure:"scholarships"`
	DeadlineSpring     string `mapstructure:"deadline_spring"`
	DeadlineSummer     string `mapstructure:"deadline_summer"`
	DeadlineFall       string `mapstructure:"deadline_fall"`
	ProgramDuration    string `mapstructure:"program_duration"`
	DataYear           int    `mapstructure:"data_year"`
}

func importPrograms(path string) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	records, err := readSeedFile(path)
	if err != nil {
		logger.Fatal("reading seed file", zap.String("filename", path), zap.Error(err))
	}

	st, err := openStore(ctx, config.Store, logger)
	if err != nil {
		logger.Fatal("opening the store", zap.Error(err))
	}
	defer st.Close()

	imported := 0
	for _, rec := range records {
		if _, err := st.Upsert(ctx, rec); err != nil {
			logger.Warn("skipping program",
				zap.String("university", rec.University),
				zap.String("field", rec.Field),
				zap.Error(err),
			)
			continue
		}
		imported++
	}

	logger.Info("import finished", zap.Int("imported", imported), zap.Int("total", len(records)))
}

func readSeedFile(path string) ([]program.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw []map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	records := make([]program.Record, 0, len(raw))
	for i, item := range raw {
		rec, err := decodeSeed(item)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func decodeSeed(item map[string]any) (program.Record, error) {
	var seed seedProgram
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &seed,
	})
	if err != nil {
		return program.Record{}, err
	}
	if err := dec.Decode(item); err != nil {
		return program.Record{}, err
	}

	degree, err := program.ParseDegree(seed.Degree)
	if err != nil {
		return program.Record{}, err
	}

	return program.Record{
		University:         seed.University,
		Degree:             degree,
		Field:              seed.Field,
		Country:            seed.Country,
		TuitionFee:         seed.TuitionFee,
		GPARequirement:     seed.GPARequirement,
		EnglishRequirement: englishText(seed.EnglishRequirement),
		TestRequirements:   seed.TestRequirements,
		Scholarships:       scholarshipText(seed.Scholarships),
		Deadlines: program.Deadlines{
			Spring: seed.DeadlineSpring,
			Summer: seed.DeadlineSummer,
			Fall:   seed.DeadlineFall,
		},
		ProgramDuration: seed.ProgramDuration,
		DataYear:        seed.DataYear,
	}, nil
}

// englishText renders {"TOEFL": 100, "IELTS": 7} as "IELTS 7 / TOEFL 100".
func englishText(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case map[string]any:
		tests := make([]string, 0, len(value))
		for test := range value {
			tests = append(tests, test)
		}
		sort.Strings(tests)

		parts := make([]string, 0, len(tests))
		for _, test := range tests {
			if score := fmt.Sprint(value[test]); score != "" && score != "0" {
				parts = append(parts, strings.ToUpper(test)+" "+score)
			}
		}
		return strings.Join(parts, " / ")
	}
	return fmt.Sprint(v)
}

func scholarshipText(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case bool:
		if value {
			return "Available"
		}
		return "None"
	}
	return fmt.Sprint(v)
}
