package templates

import (
	"fmt"
	"strings"
	"time"

	"github.com/Riboost-Studio/label-print-agent/internal/model"
)

// zplBuilder accumulates ZPL commands.
type zplBuilder struct {
	b strings.Builder
}

func (z *zplBuilder) raw(format string, args ...any) {
	fmt.Fprintf(&z.b, format, args...)
}

// field writes a positioned text field with the given font height.
func (z *zplBuilder) field(x, y, size int, text string) {
	z.raw("^FO%d,%d^A0N,%d,%d", x, y, size, size)
	z.data(text)
}

// data writes ^FD...^FS, switching to hex escapes when the text holds ZPL control characters.
func (z *zplBuilder) data(text string) {
	if strings.ContainsAny(text, "^~_") {
		z.raw("^FH^FD%s^FS", escapeZPL(text))
		return
	}
	z.raw("^FD%s^FS", text)
}

func (z *zplBuilder) bytes() model.CommandStream {
	return model.CommandStream(z.b.String())
}

func escapeZPL(s string) string {
	r := strings.NewReplacer("_", "_5F", "^", "_5E", "~", "_7E")
	return r.Replace(s)
}

func stamp(p model.Payload, generatedAt time.Time) string {
	return p.StringOr(generatedAt.Format(model.TimestampLayout), "timestamp")
}

func palletLabel(p model.Payload, generatedAt time.Time) model.CommandStream {
	palletID, _ := p.String(palletIDField.Keys...)
	barcode := p.StringOr(palletID, "barcode")
	location := p.StringOr("N/A", "location", "locationId")

	var z zplBuilder
	z.raw("^XA^CI28^LH0,0")
	z.field(50, 50, 50, palletID)
	z.raw("^FO50,120^BY3^BCN,100,Y,N,N")
	z.data(barcode)
	z.field(50, 250, 30, "Location: "+location)
	z.field(50, 300, 25, stamp(p, generatedAt))
	if product, ok := p.String("productName", "product_name", "urun_adi"); ok {
		z.field(50, 340, 25, product)
	}
	z.raw("^XZ")
	return z.bytes()
}

func locationLabel(p model.Payload, generatedAt time.Time) model.CommandStream {
	id, _ := p.String("locationId", "location_id", "id")
	name := p.StringOr(id, "locationName", "location_name")
	warehouse := p.StringOr("", "warehouseCode", "warehouse_code", "warehouse")
	lower := "DP-S-" + id + "1"
	upper := "DP-S-" + id + "2"

	var z zplBuilder
	z.raw("^XA^CI28^PW799^LL630^MMT")
	z.raw("^FO10,10^GB750,2,2^FS^FO10,10^GB2,600,2,B^FS^FO759,10^GB2,600,2,B^FS^FO10,618^GB750,2,2^FS")
	if warehouse != "" {
		z.field(18, 25, 25, warehouse)
	}
	z.field(25, 55, 50, name)
	z.raw("^FO10,110^GB750,2,2^FS")

	z.raw("^CF0,40^FO10,200^FB375,1,0,C")
	z.data("Lower Shelf")
	z.raw("^A0N,30,30^FO10,250^FB375,1,0,C")
	z.data(lower)
	z.raw("^FO90,320^BQN,2,10")
	z.data("LA," + lower)

	z.raw("^CF0,40^FO390,200^FB375,1,0,C")
	z.data("Upper Shelf")
	z.raw("^A0N,30,30^FO390,250^FB375,1,0,C")
	z.data(upper)
	z.raw("^FO470,320^BQN,2,10")
	z.data("LA," + upper)

	z.raw("^FO10,170^GB375,450,2^FS^FO385,170^GB375,450,2^FS")
	z.field(18, 580, 20, stamp(p, generatedAt))
	z.raw("^XZ")
	return z.bytes()
}

func testLabel(p model.Payload, generatedAt time.Time) model.CommandStream {
	var z zplBuilder
	z.raw("^XA^LH0,0^PW400")
	z.raw("^FO100,50^CF0,40")
	z.data("TEST LABEL")
	z.raw("^FO50,120^CF0,25")
	z.data(p.StringOr("Printer Test", "message"))
	z.raw("^FO50,160^CF0,20")
	z.data("Time: " + stamp(p, generatedAt))
	z.raw("^XZ")
	return z.bytes()
}

// customZPL passes caller-supplied commands through untouched.
func customZPL(p model.Payload, _ time.Time) model.CommandStream {
	zpl, _ := p.String("zpl", "zpl_command")
	return model.CommandStream(zpl)
}
