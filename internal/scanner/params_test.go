package scanner

import (
	"errors"
	"testing"
)

const sampleParamsXML = `<?xml version="1.0" encoding="UTF-8"?>
<ScanParameterResponse>
  <ScanTypeList>
    <ScanType>
      <scanCode>TOP_PERC_GAIN</scanCode>
      <displayName>Top % Gainers</displayName>
      <vendor></vendor>
      <instruments>STK,ETF.EQ.US</instruments>
    </ScanType>
    <ScanType>
      <scanCode>HOT_BY_VOLUME</scanCode>
      <displayName>Hot Contracts by Volume</displayName>
      <vendor></vendor>
      <instruments>STK</instruments>
    </ScanType>
    <ScanType>
      <scanCode>HIGH_BOND_ASK_YIELD_ALL</scanCode>
      <displayName>High Ask Yield</displayName>
      <vendor></vendor>
      <instruments>BOND.GOVT</instruments>
    </ScanType>
    <ScanType>
      <scanCode>SCAN_etfAssets_DESC</scanCode>
      <displayName>Largest ETFs</displayName>
      <vendor>ALV</vendor>
      <instruments>ETF.EQ.US</instruments>
    </ScanType>
  </ScanTypeList>
</ScanParameterResponse>`

func TestParseParams(t *testing.T) {
	schema, err := ParseParams(sampleParamsXML)
	if err != nil {
		t.Fatalf("ParseParams failed: %v", err)
	}
	if schema.Len() != 4 {
		t.Fatalf("Len = %d, want 4", schema.Len())
	}

	st, ok := schema.Lookup("TOP_PERC_GAIN")
	if !ok {
		t.Fatal("TOP_PERC_GAIN not found")
	}
	if st.DisplayName != "Top % Gainers" {
		t.Errorf("DisplayName = %q", st.DisplayName)
	}
	if _, ok := schema.Lookup("NOT_A_SCANNER"); ok {
		t.Error("Lookup found a scanner that does not exist")
	}
}

func TestParseParams_Invalid(t *testing.T) {
	if _, err := ParseParams("not xml at all <<<"); err == nil {
		t.Fatal("expected error for invalid XML")
	}
}

func TestCategories(t *testing.T) {
	schema, err := ParseParams(sampleParamsXML)
	if err != nil {
		t.Fatalf("ParseParams failed: %v", err)
	}

	cats := schema.Categories()
	find := func(inst, name string) *Category {
		for i := range cats {
			if cats[i].Instrument == inst && cats[i].Name == name {
				return &cats[i]
			}
		}
		return nil
	}

	if c := find("Stocks", "Momentum & Gainers"); c == nil || len(c.Scans) != 1 {
		t.Errorf("Momentum & Gainers = %+v, want 1 scan", c)
	}
	if c := find("Stocks", "Volume & Activity"); c == nil || c.Scans[0].Code != "HOT_BY_VOLUME" {
		t.Errorf("Volume & Activity = %+v", c)
	}
	if c := find("Bonds", "Bond Scanners"); c == nil {
		t.Error("bond scanner not categorized under Bonds")
	}
	if c := find("ETFs", "ETF Scanners"); c == nil {
		t.Error("ALV vendor not categorized under ETFs")
	}
}

func TestValidateFilter(t *testing.T) {
	if err := ValidateFilter("priceAbove"); err != nil {
		t.Errorf("priceAbove rejected: %v", err)
	}
	if err := ValidateFilter("volumeAbove"); err != nil {
		t.Errorf("volumeAbove rejected: %v", err)
	}
	if err := ValidateFilter("nonsenseTag"); !errors.Is(err, ErrUnknownParameter) {
		t.Errorf("err = %v, want ErrUnknownParameter", err)
	}
}

func TestEncodeScannerSubscription(t *testing.T) {
	min, max := 1.0, 20.0
	p := SubscriptionParams{MinPrice: &min, MaxPrice: &max}
	p.applyDefaults()

	fields := encodeScannerSubscription(11000, "TOP_PERC_GAIN", p)

	if fields[0] != "22" || fields[1] != "4" {
		t.Errorf("header = %v", fields[:2])
	}
	if fields[2] != "11000" || fields[3] != "50" {
		t.Errorf("req_id/rows = %q/%q", fields[2], fields[3])
	}
	if fields[6] != "TOP_PERC_GAIN" {
		t.Errorf("scan code = %q", fields[6])
	}

	// 7 header fields + 17 legacy slots, then the filter count.
	const filterCountIdx = 7 + 17
	if fields[filterCountIdx] != "3" {
		t.Fatalf("filter count = %q, want 3", fields[filterCountIdx])
	}
	pairs := fields[filterCountIdx+1 : filterCountIdx+7]
	want := []string{"priceAbove", "1", "priceBelow", "20", "volumeAbove", "100000"}
	for i := range want {
		if pairs[i] != want[i] {
			t.Fatalf("filter pairs = %v, want %v", pairs, want)
		}
	}
	if fields[len(fields)-1] != "0" {
		t.Errorf("trailing options field = %q, want 0", fields[len(fields)-1])
	}
}
