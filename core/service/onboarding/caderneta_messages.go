package onboarding

import "fmt"

const welcomeMessage = `Olá, empreendedor! 🚀💼

Bem-vindo ao *Caderneta* - Seu parceiro inteligente em gestão financeira! 📊💰

Imagina controlar suas finanças com simplicidade e precisão, direto do seu WhatsApp? Estamos aqui para transformar sua gestão financeira em algo descomplicado e estratégico.

Com o *Caderneta*, você vai:
- Acompanhar receitas e despesas em tempo real
- Gerar relatórios financeiros instantâneos
- Tomar decisões inteligentes sobre seu negócio

Vamos começar? Me diga seu nome completo para personalizar sua experiência. 😊`

const (
	askFullName      = "Por favor, me diga seu nome completo:"
	askEmail         = "Por favor, me diga seu email:"
	askCode          = "Por favor, digite o código de confirmação que enviamos para o número já cadastrado:"
	invalidFullName  = "Por favor, digite seu nome completo."
	invalidEmail     = "Por favor, digite um email válido."
	nameAccepted     = "Ótimo! Agora, por favor me diga seu email:"
	codeSent         = "Encontramos uma conta com esse email. 🔐\n\nEnviamos um código de confirmação para o número cadastrado nela. Digite o código aqui para vincular este número."
	attemptsOver     = "Número de tentativas esgotado. 🚫\n\nEnvie uma nova mensagem para recomeçar o cadastro."
	provisionFailure = "Não consegui concluir seu cadastro agora. 😕 Envie qualquer mensagem em instantes para tentar de novo."
)

func wrongCode(remaining int) string {
	if remaining == 1 {
		return "Código inválido. Você ainda tem 1 tentativa."
	}
	return fmt.Sprintf("Código inválido. Você ainda tem %d tentativas.", remaining)
}

func completionMessage(help string) string {
	return "Cadastro concluído com sucesso! ✅\n\nAgora você pode utilizar nossos serviços! 🎉\n\n" + help
}

func linkedMessage(help string) string {
	return "Número vinculado com sucesso! ✅\n\nAgora você pode utilizar nossos serviços por aqui também! 🎉\n\n" + help
}
