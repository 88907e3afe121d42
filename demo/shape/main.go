// Command shape builds a generator, runs it on a random
// batch, and reports the output shape.
package main

import (
	"flag"
	"log"
	"os"
	"time"

	"github.com/klauspost/cpuid/v2"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec32"
	"github.com/unixpickle/pix2pix"
	"github.com/unixpickle/pix2pix/pixconv"
	"github.com/unixpickle/rip"
	"github.com/unixpickle/serializer"
)

func main() {
	var cfg pix2pix.Config
	var batch int
	var trace, bench, parallel bool
	var savePath string
	flag.IntVar(&cfg.InputDepth, "depth", 3, "input channels")
	flag.IntVar(&cfg.OutputDepth, "outdepth", 0, "output channels (0 for input channels)")
	flag.IntVar(&cfg.Features, "features", pix2pix.DefaultFeatures, "first stage features")
	flag.IntVar(&cfg.Width, "width", pix2pix.DefaultSize, "image width")
	flag.IntVar(&cfg.Height, "height", pix2pix.DefaultSize, "image height")
	flag.IntVar(&batch, "batch", 1, "batch size")
	flag.BoolVar(&trace, "trace", false, "log per-stage statistics")
	flag.BoolVar(&bench, "bench", false, "repeat forward passes until interrupted")
	flag.BoolVar(&parallel, "parallel", cpuid.CPU.PhysicalCores > 1,
		"use parallel convolutions")
	flag.StringVar(&savePath, "save", "", "file to save the generator to")
	flag.Parse()

	if parallel {
		pixconv.SetConverMaker(pixconv.MakeParallelConver)
	}

	c := anyvec32.CurrentCreator()
	g, err := pix2pix.NewGenerator(c, cfg)
	if err != nil {
		log.Fatal(err)
	}
	for _, b := range g.Decoder {
		b.Conv.(*pixconv.ConvTranspose).Parallel = parallel
	}
	if trace {
		g.SetTrace(os.Stderr)
	}

	var numParams int
	for _, p := range g.Parameters() {
		numParams += p.Vector.Len()
	}
	log.Printf("generator has %d parameters in %d tensors", numParams,
		len(g.Parameters()))

	in := c.MakeVector(g.InputSize() * batch)
	anyvec.Rand(in, anyvec.Normal, nil)
	out := g.Apply(anydiff.NewConst(in), batch).Output()
	log.Printf("output: batch of %d with shape %dx%dx%d (%d components)", batch,
		g.Config.Width, g.Config.Height, g.Config.OutputDepth, out.Len())

	if bench {
		g.SetTrace(nil)
		runBenchmark(g, in, batch)
	}

	if savePath != "" {
		if err := serializer.SaveAny(savePath, g); err != nil {
			log.Fatal(err)
		}
		log.Println("saved generator to", savePath)
	}
}

func runBenchmark(g *pix2pix.Generator, in anyvec.Vector, batch int) {
	log.Printf("benchmarking on %s (%d cores, %d threads)", cpuid.CPU.BrandName,
		cpuid.CPU.PhysicalCores, cpuid.CPU.LogicalCores)
	log.Println("Press ctrl+c once to stop...")
	stop := rip.NewRIP().Chan()
	start := time.Now()
	var count int
	for {
		select {
		case <-stop:
			return
		default:
		}
		g.Apply(anydiff.NewConst(in), batch)
		count++
		elapsed := time.Since(start)
		log.Printf("pass %d: %.2f images/sec", count,
			float64(count*batch)/elapsed.Seconds())
	}
}
