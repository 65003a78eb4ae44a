package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/fridgekeeper/internal/common"
)

// AddMode tells how an item was captured.
type AddMode string

const (
	AddModeScan   AddMode = "SCAN"
	AddModeManual AddMode = "MANUAL"
)

// noExpirySortKey sorts items without an expiry date after all dated ones.
const noExpirySortKey = "9999-99-99"

// Product is the description produced by the barcode/OCR capture pipeline.
type Product struct {
	Barcode             string
	Name                string
	Brand               string
	ImageURL            string
	ImageIngredientsURL string
	ImageNutritionURL   string
	NutriScore          string
}

// Item is a fridge item. Its JSON form is both the stored payload and the
// body of POST /items.
type Item struct {
	ClientID            string  `json:"clientId"`
	Barcode             string  `json:"barcode,omitempty"`
	Name                string  `json:"name,omitempty"`
	Brand               string  `json:"brand,omitempty"`
	ImageURL            string  `json:"imageUrl,omitempty"`
	ImageIngredientsURL string  `json:"imageIngredientsUrl,omitempty"`
	ImageNutritionURL   string  `json:"imageNutritionUrl,omitempty"`
	NutriScore          string  `json:"nutriScore,omitempty"`
	ExpiryDate          string  `json:"expiryDate,omitempty"`
	AddMode             AddMode `json:"addMode"`
}

// NewItem builds an item from a captured product.
func NewItem(clientID string, p Product, expiryDate string, mode AddMode) Item {
	return Item{
		ClientID:            clientID,
		Barcode:             p.Barcode,
		Name:                p.Name,
		Brand:               p.Brand,
		ImageURL:            p.ImageURL,
		ImageIngredientsURL: p.ImageIngredientsURL,
		ImageNutritionURL:   p.ImageNutritionURL,
		NutriScore:          p.NutriScore,
		ExpiryDate:          expiryDate,
		AddMode:             mode,
	}
}

// Validate checks the fields a local create must carry.
func (i Item) Validate() error {
	if i.ClientID == "" {
		return fmt.Errorf("%w: empty client id", common.ErrorValidation)
	}
	if i.ExpiryDate != "" {
		if _, err := time.Parse(common.ExpiryDateLayout, i.ExpiryDate); err != nil {
			return common.ErrorIncorrectExpiry
		}
	}
	switch i.AddMode {
	case AddModeScan, AddModeManual:
	default:
		return fmt.Errorf("%w: unknown add mode %q", common.ErrorValidation, i.AddMode)
	}
	return nil
}

// Record wraps the item into a store record. Sync metadata is left zero.
func (i Item) Record() (Record, error) {
	payload, err := json.Marshal(i)
	if err != nil {
		return Record{}, fmt.Errorf("encode item: %w", err)
	}
	sortKey := i.ExpiryDate
	if sortKey == "" {
		sortKey = noExpirySortKey
	}
	return Record{ClientID: i.ClientID, Kind: KindItem, Payload: payload, SortKey: sortKey}, nil
}

// ItemFromRecord decodes the item payload of r.
func ItemFromRecord(r Record) (Item, error) {
	if r.Kind != KindItem {
		return Item{}, fmt.Errorf("record %s is a %s, not an item", r.ClientID, r.Kind)
	}
	var i Item
	if err := json.Unmarshal(r.Payload, &i); err != nil {
		return Item{}, fmt.Errorf("decode item %s: %w", r.ClientID, err)
	}
	i.ClientID = r.ClientID
	return i, nil
}

// ItemView is an item as listed to the user.
type ItemView struct {
	Item
	SyncInfo
}

// ItemViewFromRecord builds the listing view of r.
func ItemViewFromRecord(r Record) (ItemView, error) {
	i, err := ItemFromRecord(r)
	if err != nil {
		return ItemView{}, err
	}
	return ItemView{Item: i, SyncInfo: syncInfo(r)}, nil
}
