package html

import (
	"fmt"
	"time"

	"github.com/maragudk/gomponents-heroicons/v2/outline"
	. "maragu.dev/gomponents"
	. "maragu.dev/gomponents/components"
	. "maragu.dev/gomponents/html"
)

const brand = "LumiBreeze"

// htmx swaps 422 and 503 responses so validation errors and a failed save
// render in place.
const htmxConfig = `{"responseHandling":[{"code":"204","swap":false},{"code":"[23]..","swap":true},{"code":"422","swap":true},{"code":"503","swap":true},{"code":"[45]..","swap":false,"error":true}]}`

func page(title string, children ...Node) Node {
	return HTML5(HTML5Props{
		Title:    fmt.Sprintf("%s - %s", title, brand),
		Language: "ko",
		Head: []Node{
			Meta(Name("htmx-config"), Content(htmxConfig)),
			Script(Src("https://cdn.tailwindcss.com")),
			Script(Src("https://unpkg.com/htmx.org@2.0.4")),
			Script(Src("https://unpkg.com/htmx-ext-sse@2.2.2/sse.js")),
			Script(Src("/static/chat.js"), Defer()),
			Link(Rel("stylesheet"), Href("/static/chat.css")),
		},
		Body: []Node{
			Class("min-h-screen flex flex-col bg-gray-950 text-white font-sans"),
			Group(children),
		},
	})
}

func header(title, subtitle string) Node {
	return Header(
		Class("sticky top-0 z-40 backdrop-blur-md bg-black/20 border-b border-white/10"),
		Div(
			Class("max-w-4xl mx-auto px-4 py-4 flex items-center justify-between"),
			A(
				Href("/"),
				Class("flex items-center gap-3"),
				Div(
					Class("w-8 h-8 rounded-full bg-gradient-to-r from-teal-500 to-cyan-400 flex items-center justify-center"),
					Span(Class("w-4 h-4 text-white"), outline.Briefcase()),
				),
				Div(
					H1(Class("text-base font-bold"), Text(title)),
					If(subtitle != "", Span(Class("text-xs text-teal-400"), Text(subtitle))),
				),
			),
			Span(Class("text-xs text-gray-500"), Text("by "+brand)),
		),
	)
}

func footer() Node {
	return Footer(
		Class("py-4 px-4 border-t border-white/10 text-center"),
		P(Class("text-xs text-gray-500"), Text("본 서비스는 의료행위가 아니며, 치료 결정은 의료진 상담이 필수입니다.")),
		P(Class("text-xs text-gray-600 mt-1"), Text(fmt.Sprintf("© %d %s. All rights reserved.", time.Now().Year(), brand))),
	)
}

func field(id, label, typ, name, value, placeholder, errMsg string) Node {
	return Div(
		Class("space-y-1"),
		Label(
			For(id),
			Class("block text-sm font-medium"),
			Text(label+" "),
			Span(Class("text-red-400"), Text("*")),
		),
		Input(
			ID(id),
			Type(typ),
			Name(name),
			Value(value),
			Placeholder(placeholder),
			Required(),
			Class("w-full px-4 py-3 rounded-xl bg-white/5 border border-white/10 placeholder-gray-500 focus:outline-none focus:border-teal-500"),
		),
		If(errMsg != "", P(Class("text-xs text-red-400"), Text(errMsg))),
	)
}

func errorBox(msg string) Node {
	return Div(
		Class("p-4 rounded-xl bg-red-500/10 border border-red-500/20"),
		P(Class("text-center text-red-400 font-medium text-sm"), Text(msg)),
	)
}
