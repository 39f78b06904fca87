package remote

import (
	"testing"

	"github.com/ericsun2/hark-lang/controller"
	"github.com/ericsun2/hark-lang/controller/conformance"
)

func TestConformance(t *testing.T) {
	conformance.Run(t, func() controller.Controller { return New() })
}
