package metadata

// StorageCost describes the estimated price of permanently storing a blob.
type StorageCost struct {
	Bytes    int64   `json:"bytes"`
	CostUSD  float64 `json:"costUSD"`
	Currency string  `json:"currency"`
	Provider string  `json:"provider"`
}

const arweaveCostPerMB = 0.01 // USD

// CalculateStorageCost estimates the Arweave cost for a blob of the given size.
func CalculateStorageCost(sizeBytes int64) StorageCost {
	sizeMB := float64(sizeBytes) / (1024 * 1024)
	return StorageCost{
		Bytes:    sizeBytes,
		CostUSD:  sizeMB * arweaveCostPerMB,
		Currency: "USD",
		Provider: "arweave",
	}
}
