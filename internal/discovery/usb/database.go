// internal/discovery/usb/database.go
package usb

import (
	"github.com/google/gousb"

	"tempctl-service/internal/model"
)

// InstrumentDatabase contains known USB vendor/product IDs for
// identification. Bench instruments mostly attach through USB-to-serial
// bridge chips, so bridge vendors map to a generic serial candidate unless
// the product ID narrows it down.
type InstrumentDatabase struct {
	vendors map[gousb.ID]*VendorInfo
}

// VendorInfo contains vendor-specific information
type VendorInfo struct {
	Brand    model.ControllerBrand
	Name     string
	products map[gousb.ID]*ProductInfo
}

// ProductInfo contains product-specific information
type ProductInfo struct {
	Model      string
	Confidence float64
}

// NewInstrumentDatabase creates and initializes the instrument database
func NewInstrumentDatabase() *InstrumentDatabase {
	db := &InstrumentDatabase{
		vendors: make(map[gousb.ID]*VendorInfo),
	}
	db.initializeDatabase()
	return db
}

// initializeDatabase populates the known instruments database
func (db *InstrumentDatabase) initializeDatabase() {
	// Stanford Research Systems (0xB506)
	srsVendor := &VendorInfo{
		Brand:    model.BrandSRS,
		Name:     "Stanford Research Systems",
		products: make(map[gousb.ID]*ProductInfo),
	}
	srsVendor.products[0x0100] = &ProductInfo{
		Model:      "CTC100",
		Confidence: 0.95,
	}
	db.vendors[0xB506] = srsVendor

	// FTDI bridge chips (0x0403). The CTC100 front-panel USB port and many
	// Lakeshore adapter cables enumerate as FT232 devices.
	ftdiVendor := &VendorInfo{
		Brand:    model.BrandGeneric,
		Name:     "Future Technology Devices International",
		products: make(map[gousb.ID]*ProductInfo),
	}
	ftdiVendor.products[0x6001] = &ProductInfo{
		Model:      "FT232R serial bridge",
		Confidence: 0.40,
	}
	ftdiVendor.products[0x6015] = &ProductInfo{
		Model:      "FT231X serial bridge",
		Confidence: 0.40,
	}
	db.vendors[0x0403] = ftdiVendor

	// Silicon Labs bridge chips (0x10C4)
	silabsVendor := &VendorInfo{
		Brand:    model.BrandGeneric,
		Name:     "Silicon Laboratories",
		products: make(map[gousb.ID]*ProductInfo),
	}
	silabsVendor.products[0xEA60] = &ProductInfo{
		Model:      "CP210x serial bridge",
		Confidence: 0.40,
	}
	db.vendors[0x10C4] = silabsVendor

	// Prolific bridge chips (0x067B)
	prolificVendor := &VendorInfo{
		Brand:    model.BrandGeneric,
		Name:     "Prolific Technology",
		products: make(map[gousb.ID]*ProductInfo),
	}
	prolificVendor.products[0x2303] = &ProductInfo{
		Model:      "PL2303 serial bridge",
		Confidence: 0.35,
	}
	db.vendors[0x067B] = prolificVendor
}

// IsKnownVendor checks if a vendor ID is in the database
func (db *InstrumentDatabase) IsKnownVendor(vendorID gousb.ID) bool {
	_, exists := db.vendors[vendorID]
	return exists
}

// GetVendorInfo retrieves vendor information
func (db *InstrumentDatabase) GetVendorInfo(vendorID gousb.ID) *VendorInfo {
	return db.vendors[vendorID]
}

// GetProductInfo retrieves product information from vendor
func (vi *VendorInfo) GetProductInfo(productID gousb.ID) *ProductInfo {
	return vi.products[productID]
}

// GetTotalProductCount returns total number of known products
func (db *InstrumentDatabase) GetTotalProductCount() int {
	total := 0
	for _, vendor := range db.vendors {
		total += len(vendor.products)
	}
	return total
}
