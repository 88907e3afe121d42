// Command translate runs a generator on an image file.
package main

import (
	"flag"
	"image"
	_ "image/jpeg"
	"image/png"
	"log"
	"os"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec/anyvec32"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/pix2pix"
	"github.com/unixpickle/pix2pix/pixconv"
	"github.com/unixpickle/serializer"
)

func main() {
	var netPath, inPath, outPath string
	var depth, features int
	flag.StringVar(&netPath, "net", "", "generator file (random generator if empty)")
	flag.StringVar(&inPath, "in", "", "input PNG or JPEG image")
	flag.StringVar(&outPath, "out", "out.png", "output PNG image")
	flag.IntVar(&depth, "depth", 3, "channels for a random generator (1 or 3)")
	flag.IntVar(&features, "features", pix2pix.DefaultFeatures,
		"features for a random generator")
	flag.Parse()

	if inPath == "" {
		essentials.Die("missing -in flag")
	}

	c := anyvec32.CurrentCreator()
	var g *pix2pix.Generator
	if netPath != "" {
		if err := serializer.LoadAny(netPath, &g); err != nil {
			essentials.Die(err)
		}
	} else {
		var err error
		g, err = pix2pix.NewGenerator(c, pix2pix.Config{
			InputDepth: depth,
			Features:   features,
		})
		if err != nil {
			essentials.Die(err)
		}
	}
	g.SetDropout(false)

	img, err := readImage(inPath)
	if err != nil {
		essentials.Die(err)
	}
	if img.Bounds().Dx() != g.Config.Width || img.Bounds().Dy() != g.Config.Height {
		essentials.Die("image must be", g.Config.Width, "by", g.Config.Height)
	}

	in := pixconv.ImageToTensor(c, img, g.Config.InputDepth)
	out := g.Apply(anydiff.NewConst(in), 1).Output()
	outImg := pixconv.TensorToImage(g.Config.Width, g.Config.Height, g.Config.OutputDepth,
		out)

	if err := writeImage(outPath, outImg); err != nil {
		essentials.Die(err)
	}
	log.Println("wrote", outPath)
}

func readImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, essentials.AddCtx("decode "+path, err)
	}
	return img, nil
}

func writeImage(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}
