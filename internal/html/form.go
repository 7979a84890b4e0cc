package html

import (
	"github.com/maragudk/gomponents-heroicons/v2/outline"
	. "maragu.dev/gomponents"
	. "maragu.dev/gomponents/html"

	"chatfunnel/internal/leads"
)

// LeadForm is the inline consultation form with the values last submitted.
type LeadForm struct {
	Values leads.HospitalLead
	// ConsentAnswered distinguishes "no answer" from an explicit no.
	ConsentAnswered bool
	Errors          map[string]string
	Failed          bool
}

var reasonText = map[string]string{
	"required":         "필수 입력 항목입니다.",
	"invalid address":  "올바른 이메일 주소를 입력해주세요.",
	"consent required": "개인정보 제공에 동의해주셔야 신청이 가능합니다.",
	"too long":         "입력 내용이 너무 깁니다.",
}

// FieldErrors maps a validation error to the message shown under its field.
func FieldErrors(field, reason string) map[string]string {
	msg, ok := reasonText[reason]
	if !ok {
		msg = reason
	}
	return map[string]string{field: msg}
}

// LeadFormFragment renders the form. It posts to /leads and swaps itself.
func LeadFormFragment(f LeadForm) Node {
	v := f.Values
	return Div(
		ID("lead-form"),
		Class("mt-6 p-6 rounded-2xl bg-white/5 border border-white/10"),
		H3(Class("text-xl md:text-2xl font-bold mb-2"), Text("무료 상담 신청")),
		Form(
			Method("post"),
			Action("/leads"),
			Attr("hx-post", "/leads"),
			Attr("hx-target", "#lead-form"),
			Attr("hx-swap", "outerHTML"),
			Class("space-y-4"),
			consentField(f),
			field("hospitalName", "상호", "text", "hospital_name", v.HospitalName, "병원명을 입력해주세요", f.Errors["hospital_name"]),
			field("contactName", "성명", "text", "contact_name", v.ContactName, "담당자 성함을 입력해주세요", f.Errors["contact_name"]),
			field("phone", "전화번호", "tel", "phone", v.Phone, "010-0000-0000", f.Errors["phone"]),
			field("email", "이메일", "email", "email", v.Email, "example@hospital.com", f.Errors["email"]),
			Button(
				Type("submit"),
				Class("w-full py-4 px-6 rounded-xl font-bold text-lg bg-gradient-to-r from-teal-500 to-cyan-400 flex items-center justify-center gap-2"),
				Span(Class("w-5 h-5"), outline.CheckCircle()),
				Text("상담 신청하기"),
			),
			If(f.Failed, errorBox("제출 중 오류가 발생했습니다. 다시 시도해주세요.")),
		),
		P(Class("mt-4 text-xs text-gray-500 text-center"), Text("* 입력하신 정보는 상담 목적으로만 사용됩니다")),
	)
}

func consentField(f LeadForm) Node {
	yes := f.ConsentAnswered && f.Values.PrivacyConsent
	no := f.ConsentAnswered && !f.Values.PrivacyConsent
	return Div(
		Class("space-y-2"),
		Label(
			Class("block text-sm font-semibold"),
			Text("개인정보 제공에 동의합니까? "),
			Span(Class("text-red-400"), Text("*")),
		),
		Div(
			Class("flex gap-6"),
			Label(
				Class("flex items-center gap-2 cursor-pointer"),
				Input(Type("radio"), Name("privacy_consent"), Value("yes"), If(yes, Checked())),
				Span(Text("예")),
			),
			Label(
				Class("flex items-center gap-2 cursor-pointer"),
				Input(Type("radio"), Name("privacy_consent"), Value("no"), If(no, Checked())),
				Span(Text("아니오")),
			),
		),
		If(f.Errors["privacy_consent"] != "", P(Class("text-xs text-red-400"), Text(f.Errors["privacy_consent"]))),
	)
}

// CompletePage thanks the visitor after a successful submission.
func CompletePage() Node {
	return page("상담 신청 완료",
		header("병원 마케팅 상담", ""),
		Main(
			Class("flex-1 flex items-center justify-center px-4"),
			Div(
				Class("max-w-md text-center space-y-4"),
				Div(Class("w-16 h-16 mx-auto text-teal-400"), outline.CheckCircle()),
				H2(Class("text-2xl font-bold"), Text("상담 신청이 완료되었습니다")),
				P(Class("text-gray-400"), Text("담당자가 확인 후 빠르게 연락드리겠습니다.")),
				A(Href("/"), Class("inline-block mt-4 text-sm text-teal-400 hover:underline"), Text("처음으로 돌아가기")),
			),
		),
		footer(),
	)
}
