package market

import "testing"

func testConfig() Config {
	return Config{
		Help1688:      "help 1688",
		HelpPinduoduo: "help pinduoduo",
		HelpPoizon:    "help poizon",
		HelpTaobao:    "help taobao",
	}
}

func TestParseClosedSet(t *testing.T) {
	cases := []struct {
		in   string
		want Kind
		ok   bool
	}{
		{"1688", Alibaba1688, true},
		{"pinduoduo", Pinduoduo, true},
		{" Poizon ", Poizon, true},
		{"TAOBAO", Taobao, true},
		{"aliexpress", "", false},
		{"", "", false},
		{"1688x", "", false},
	}
	for _, tc := range cases {
		got, ok := Parse(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Errorf("Parse(%q) = (%q, %v), want (%q, %v)", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestCatalogHelp(t *testing.T) {
	cat, err := NewCatalog(testConfig())
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	for _, k := range Kinds() {
		text, ok := cat.Help(k)
		if !ok || text == "" {
			t.Errorf("Help(%s) = (%q, %v), want configured text", k, text, ok)
		}
	}
	if _, ok := cat.Help(Kind("wildberries")); ok {
		t.Error("Help for unknown kind must report not found")
	}
}

func TestCatalogRejectsMissingText(t *testing.T) {
	cfg := testConfig()
	cfg.HelpPoizon = "   "
	if _, err := NewCatalog(cfg); err == nil {
		t.Fatal("NewCatalog must fail when a help text is empty")
	}
}
