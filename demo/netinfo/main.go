// Command netinfo realizes a convmarkup network and
// prints information about it.
package main

import (
	"flag"
	"fmt"
	"io/ioutil"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec/anyvec32"
	"github.com/unixpickle/convmarkup"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/pix2pix/pixconv"
	"github.com/unixpickle/pix2pix/pixnet"
)

func main() {
	var path string
	var width, height, depth int
	flag.StringVar(&path, "file", "", "markup file")
	flag.Parse()

	if path == "" {
		essentials.Die("missing -file flag")
	}
	code, err := ioutil.ReadFile(path)
	if err != nil {
		essentials.Die(err)
	}

	parsed, err := convmarkup.Parse(string(code))
	if err != nil {
		essentials.Die(err)
	}
	block, err := parsed.Block(convmarkup.Dims{}, convmarkup.DefaultCreators())
	if err != nil {
		essentials.Die(err)
	}
	root, ok := block.(*convmarkup.Root)
	if !ok || len(root.Children) == 0 {
		essentials.Die("empty network")
	}
	// The first block is always an Input block.
	inDims := root.Children[0].OutDims()
	width, height, depth = inDims.Width, inDims.Height, inDims.Depth
	outDims := block.OutDims()

	c := anyvec32.CurrentCreator()
	layer, err := pixconv.FromMarkup(c, string(code))
	if err != nil {
		essentials.Die(err)
	}

	var numParams int
	if p, ok := layer.(pixnet.Parameterizer); ok {
		for _, v := range p.Parameters() {
			numParams += v.Vector.Len()
		}
	}

	out := layer.Apply(anydiff.NewConst(c.MakeVector(width*height*depth)), 1).Output()

	fmt.Printf("input: %dx%dx%d\n", width, height, depth)
	fmt.Printf("output: %dx%dx%d (%d components)\n", outDims.Width, outDims.Height,
		outDims.Depth, out.Len())
	fmt.Println("parameters:", numParams)
}
