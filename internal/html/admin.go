package html

import (
	"fmt"
	"strconv"
	"time"

	"github.com/maragudk/gomponents-heroicons/v2/outline"
	. "maragu.dev/gomponents"
	. "maragu.dev/gomponents/html"

	"chatfunnel/internal/leads"
)

var kst = time.FixedZone("KST", 9*60*60)

const (
	TabLeads         = "leads"
	TabConsultations = "consultations"
)

// AdminLoginPage renders the login card. email is echoed back after a failed
// attempt.
func AdminLoginPage(email, errMsg string) Node {
	return page("관리자 로그인",
		Main(
			Class("flex-1 flex items-center justify-center px-4"),
			Div(
				Class("w-full max-w-md p-8 rounded-2xl bg-white/5 border border-white/10 space-y-6"),
				Div(
					H1(Class("text-2xl font-bold"), Text("관리자 로그인")),
					P(Class("text-sm text-gray-400"), Text("관리자 페이지에 접근하려면 로그인이 필요합니다")),
				),
				Form(
					Method("post"),
					Action("/admin/login"),
					Class("space-y-4"),
					If(errMsg != "", errorBox(errMsg)),
					field("email", "이메일", "email", "email", email, "admin@example.com", ""),
					field("password", "비밀번호", "password", "password", "", "••••••••", ""),
					Button(Type("submit"), Class("w-full py-3 rounded-xl font-bold bg-teal-600 hover:bg-teal-500"), Text("로그인")),
				),
			),
		),
	)
}

// AdminDashboard lists the submissions of one tab.
func AdminDashboard(tab string, hospital []leads.HospitalLead, consultations []leads.Consultation) Node {
	return page("관리자 대시보드",
		Main(
			Class("container mx-auto px-4 py-12 space-y-6"),
			Div(
				Class("flex items-center justify-between"),
				H1(Class("text-3xl font-bold"), Text("관리자 대시보드")),
				Form(
					Method("post"),
					Action("/admin/logout"),
					Button(
						Type("submit"),
						Class("flex items-center gap-2 px-3 py-1 text-sm rounded-lg border border-white/20"),
						Span(Class("w-4 h-4"), outline.LockClosed()),
						Text("로그아웃"),
					),
				),
			),
			Div(
				Class("flex gap-2"),
				tabLink(TabLeads, tab, fmt.Sprintf("랜딩페이지 리드 (%d)", len(hospital))),
				tabLink(TabConsultations, tab, fmt.Sprintf("상담 신청 (%d)", len(consultations))),
			),
			If(tab != TabConsultations, hospitalTable(hospital)),
			If(tab == TabConsultations, consultationTable(consultations)),
		),
	)
}

func tabLink(name, active, label string) Node {
	cls := "px-4 py-2 rounded-lg border border-white/20"
	if name == active || (active == "" && name == TabLeads) {
		cls = "px-4 py-2 rounded-lg bg-teal-600"
	}
	return A(Href("/admin?tab="+name), Class(cls), Text(label))
}

func card(title, description, empty string, rows []Node, total int, headers ...string) Node {
	return Section(
		Class("p-6 rounded-2xl bg-white/5 border border-white/10"),
		H2(Class("text-xl font-bold"), Text(title)),
		P(Class("text-sm text-gray-400 mb-6"), Text(description)),
		If(total == 0, Div(Class("text-center py-12 text-gray-400"), Text(empty))),
		If(total > 0, Div(
			Class("overflow-x-auto"),
			Table(
				Class("w-full text-sm text-left"),
				THead(Tr(Map(headers, func(h string) Node { return Th(Class("py-2 px-3"), Text(h)) }))),
				TBody(Group(rows)),
			),
		)),
		Div(Class("mt-6 text-sm text-gray-400"), Text(fmt.Sprintf("총 %d건", total))),
	)
}

func consentBadge(ok bool) Node {
	if ok {
		return Span(Class("px-2 py-0.5 rounded bg-green-600 text-xs"), Text("동의"))
	}
	return Span(Class("px-2 py-0.5 rounded bg-red-600 text-xs"), Text("미동의"))
}

func cell(s string) Node { return Td(Class("py-2 px-3"), Text(s)) }

func formatTime(t time.Time) string { return t.In(kst).Format("2006-01-02 15:04") }

func hospitalTable(rows []leads.HospitalLead) Node {
	trs := make([]Node, 0, len(rows))
	for i, l := range rows {
		trs = append(trs, Tr(
			Class("border-t border-white/10"),
			cell(strconv.Itoa(i+1)),
			cell(l.HospitalName),
			cell(l.ContactName),
			cell(l.Phone),
			cell(l.Email),
			Td(Class("py-2 px-3"), consentBadge(l.PrivacyConsent)),
			cell(formatTime(l.CreatedAt)),
		))
	}
	return card("랜딩페이지 상담 리드", "대화형 랜딩페이지를 통해 접수된 상담 신청 내역",
		"아직 접수된 리드가 없습니다.", trs, len(rows),
		"번호", "병원명", "성명", "전화번호", "이메일", "개인정보 동의", "신청일시")
}

func consultationTable(rows []leads.Consultation) Node {
	trs := make([]Node, 0, len(rows))
	for i, c := range rows {
		trs = append(trs, Tr(
			Class("border-t border-white/10"),
			cell(strconv.Itoa(i+1)),
			cell(c.CompanyName),
			cell(c.ContactName),
			cell(c.Phone),
			cell(c.Email),
			Td(Class("py-2 px-3"), consentBadge(c.PrivacyConsent)),
			cell(formatTime(c.CreatedAt)),
		))
	}
	return card("상담 신청 내역", "기존 채팅봇을 통해 접수된 상담 신청 내역",
		"아직 접수된 상담 신청이 없습니다.", trs, len(rows),
		"번호", "상호", "성명", "전화번호", "이메일", "개인정보 동의", "신청일시")
}
