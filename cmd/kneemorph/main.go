package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cheggaaa/pb"
	"github.com/sirupsen/logrus"

	"kneemorph/internal/models"
	"kneemorph/pkg/config"
	"kneemorph/pkg/morphology"
	"kneemorph/pkg/reference"
	"kneemorph/pkg/registration"
	"kneemorph/pkg/visualization"
	"kneemorph/pkg/volume"
	"kneemorph/pkg/workerpool"
)

func main() {
	// Parse command line arguments
	mode := flag.String("mode", "", "Stage to run: separate, thickness, volume, reference, seeds or slices")
	listPath := flag.String("list", "", "Image list (morphology list, or reference list for -mode reference)")
	configPath := flag.String("config", "kneemorph.yaml", "Configuration file")
	initConfig := flag.Bool("init-config", false, "Write a default configuration file to -config and exit")
	numCores := flag.Int("cores", 0, "Number of subjects processed concurrently (default: from config)")
	algorithm := flag.Int("algorithm", 0, "Thickness algorithm: 1 at the bone surface, 2 at the articular surface (default: from config)")
	slicesDir := flag.String("slices-dir", "slices", "Directory for extracted mask slices (-mode slices)")
	seed := flag.Int64("seed", 1, "Random seed (-mode seeds)")
	minID := flag.Int("min", 1, "Smallest image ID (-mode seeds)")
	maxID := flag.Int("max", 1, "Largest image ID (-mode seeds)")
	count := flag.Int("n", 1, "Number of seed images (-mode seeds)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	logger := initLogger(*debug)

	if *initConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			logger.WithError(err).Fatal("Failed to write configuration")
		}
		logger.WithField("path", *configPath).Info("Default configuration written")
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}
	if !cfg.Output.Verbose && !*debug {
		logger.SetLevel(logrus.WarnLevel)
	}
	if *numCores > 0 {
		cfg.Processing.NumCores = *numCores
	}
	if *algorithm > 0 {
		cfg.Processing.ThicknessAlgorithm = *algorithm
	}
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}

	startTime := time.Now()
	switch *mode {
	case "seeds":
		err = runSeeds(*seed, *minID, *maxID, *count)
	case "separate", "thickness", "volume", "slices":
		if *listPath == "" {
			flag.Usage()
			os.Exit(1)
		}
		err = runMorphology(*mode, *listPath, *slicesDir, cfg, logger)
	case "reference":
		if *listPath == "" {
			flag.Usage()
			os.Exit(1)
		}
		err = runReference(*listPath, cfg, logger)
	default:
		flag.Usage()
		os.Exit(1)
	}

	if err != nil {
		reportFailure(logger, err)
		os.Exit(1)
	}
	logger.WithFields(logrus.Fields{
		"mode":    *mode,
		"seconds": fmt.Sprintf("%.2f", time.Since(startTime).Seconds()),
	}).Info("Done")
}

// initLogger builds the process logger: JSON lines by default, coloured
// text with full timestamps in debug mode
func initLogger(debugMode bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	if debugMode {
		logger.SetLevel(logrus.DebugLevel)
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			ForceColors:   true,
		})
		logger.Debug("Debug logging enabled")
	} else {
		logger.SetLevel(logrus.InfoLevel)
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	return logger
}

// progressBar returns a Progress hook drawing a bar for a batch of total
// tasks, and the function that closes the bar
func progressBar(total int, prefix string) (func(done, total int), func()) {
	bar := pb.New(total).Prefix(prefix + " ")
	bar.Start()
	return func(int, int) { bar.Increment() }, func() { bar.Finish() }
}

func runMorphology(mode, listPath, slicesDir string, cfg *config.Config, logger *logrus.Logger) error {
	subjects, err := models.LoadMorphologyList(listPath)
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{"subjects": len(subjects), "mode": mode}).Info("Morphology list loaded")

	progress, finish := progressBar(len(subjects), mode)
	defer finish()
	p := &morphology.Pipeline{
		Workers:    cfg.Processing.NumCores,
		SliceCores: 1,
		Progress:   progress,
		Logger:     logger,
	}

	switch mode {
	case "separate":
		jobs := make([]models.SeparationJob, len(subjects))
		for i, s := range subjects {
			jobs[i] = models.SeparationJob{
				Subject:        s,
				MinRegionArea:  cfg.Processing.MinRegionArea,
				CylinderStride: cfg.Processing.CylinderStride,
				WriteNPY:       cfg.Output.WriteNPY,
			}
		}
		_, err = p.SeparateSurfaces(jobs)

	case "thickness":
		jobs := make([]models.ThicknessJob, len(subjects))
		for i, s := range subjects {
			jobs[i] = models.ThicknessJob{
				Subject:   s,
				Algorithm: models.ThicknessAlgorithm(cfg.Processing.ThicknessAlgorithm),
				UseKDTree: cfg.Processing.NeighborIndex == "kdtree",
				RenderMap: cfg.Output.ThicknessMaps,
			}
		}
		var results []morphology.ThicknessResult
		results, err = p.ComputeThickness(jobs)
		for _, r := range results {
			if r.Points > 0 {
				fmt.Printf("%s: %.2f ± %.2f mm\n", r.Subject.MaskName, r.Mean, r.Std)
			}
		}

	case "volume":
		jobs := make([]models.VolumeJob, len(subjects))
		for i, s := range subjects {
			jobs[i] = models.VolumeJob{Subject: s}
		}
		var results []morphology.VolumeResult
		results, err = p.ComputeVolume(jobs)
		for _, r := range results {
			if r.Voxels > 0 {
				fmt.Printf("%s: %.2f mm^3\n", r.Subject.MaskName, r.VolumeMM3)
			}
		}

	case "slices":
		pool := workerpool.Pool{Workers: cfg.Processing.NumCores, Progress: progress}
		name := func(s models.Subject) string { return s.MaskName }
		_, err = workerpool.Run(pool, "slices", subjects, name, func(s models.Subject) (int, error) {
			return extractSlices(s, slicesDir)
		})
	}
	return err
}

// extractSlices saves the populated slices of a mask along every axis
func extractSlices(s models.Subject, slicesDir string) (int, error) {
	mask, err := volume.ReadMask(s.MaskPath())
	if err != nil {
		return 0, err
	}
	viewer := visualization.NewViewer(mask)
	total := 0
	for _, axis := range []string{"x", "y", "z"} {
		n, err := viewer.SaveSliceSequence(axis, filepath.Join(slicesDir, s.Root(), axis))
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func runReference(listPath string, cfg *config.Config, logger *logrus.Logger) error {
	members, seed, err := models.LoadReferenceList(listPath)
	if err != nil {
		return err
	}

	ref := cfg.Reference
	engine := registration.NewEngine(ref.ElastixPath, ref.TransformixPath, registration.Params{
		Rigid:             ref.ParamRigid,
		Similarity:        ref.ParamSimilarity,
		Spline:            ref.ParamSpline,
		InverseRigid:      ref.ParamInverseRigid,
		InverseSimilarity: ref.ParamInverseSimilarity,
		InverseSpline:     ref.ParamInverseSpline,
	}, logger)
	service := registration.NewReferenceService(registration.NewBone(engine, "f"), logger)

	var bar *pb.ProgressBar
	loop := reference.NewLoop(service, reference.Options{
		MaxIterations: ref.MaxIterations,
		Workers:       cfg.Processing.NumCores,
		Seed:          seed,
		Workspace:     ref.Workspace,
		DilateRadius:  ref.DilateRadius,
		Logger:        logger,
		Progress: func(done, total int) {
			if done == 1 {
				bar = pb.StartNew(total)
			}
			bar.Increment()
			if done == total {
				bar.Finish()
			}
		},
	})

	res, err := loop.Run(members)
	if err != nil {
		return err
	}

	fmt.Println("\nReference search:")
	for _, it := range res.History {
		fmt.Printf("- iteration %d: %s -> %s (%.6f)\n", it.Number, it.Reference.Name, it.Next.Name, it.MinDistance)
	}
	fmt.Printf("Status: %s\n", res.State)
	fmt.Printf("Reference: %s\n", res.Reference.Name)
	return nil
}

func runSeeds(seed int64, minID, maxID, n int) error {
	ids, err := reference.PickSeeds(seed, minID, maxID, n)
	if err != nil {
		return err
	}
	for _, id := range ids {
		fmt.Println(id)
	}
	return nil
}

// reportFailure logs every failed subject of a batch, or the error itself
func reportFailure(logger *logrus.Logger, err error) {
	var batch *workerpool.BatchError
	if !errors.As(err, &batch) {
		logger.WithError(err).Error("Run failed")
		return
	}
	for _, f := range batch.Failures {
		logger.WithFields(logrus.Fields{
			"subject": f.Subject,
			"stage":   f.Stage,
		}).WithError(f.Err).Error("Subject failed")
	}
}
