package product

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
)

// Names are the seeded product names, one product each.
var Names = []string{
	"Laptop", "Smartphone", "Tablet", "Headphones", "Monitor",
	"Keyboard", "Mouse", "Webcam", "Microphone", "Speaker",
	"Router", "SSD Drive", "RAM Module", "Graphics Card", "Processor",
	"Motherboard", "Power Supply", "Case", "Cooling Fan", "USB Hub",
	"External HDD", "Memory Card", "Phone Case", "Screen Protector", "Charger",
	"HDMI Cable", "USB Cable", "Network Cable", "Adapter", "Docking Station",
}

var descriptions = []string{
	"High-quality product with excellent features",
	"Premium grade item for professional use",
	"Budget-friendly option with good performance",
	"Latest model with advanced technology",
	"Bestseller with great customer reviews",
	"Eco-friendly and sustainable choice",
	"Compact and portable design",
	"Heavy-duty for intensive use",
	"Sleek and modern appearance",
	"Value for money product",
}

const (
	minPrice = 10.0
	maxPrice = 999.99
	maxStock = 500
)

// Seed replaces the catalog with one product per entry in Names and
// returns how many were created. A nil rng seeds one from the runtime.
func Seed(ctx context.Context, s Store, rng *rand.Rand) (int, error) {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if err := s.DeleteAll(ctx); err != nil {
		return 0, fmt.Errorf("product: clear catalog: %w", err)
	}

	for i, name := range Names {
		p := &Product{
			Name:        name,
			Description: descriptions[rng.IntN(len(descriptions))],
			Price:       math.Round((minPrice+rng.Float64()*(maxPrice-minPrice))*100) / 100,
			Stock:       rng.IntN(maxStock + 1),
		}
		if err := s.Create(ctx, p); err != nil {
			return i, fmt.Errorf("product: create %q: %w", name, err)
		}
	}
	return len(Names), nil
}
