package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"caderneta_server/core/domain"
	"caderneta_server/core/port/out"
	"caderneta_server/core/service/command"
)

var errNoUser = errors.New("command requires a registered user")

// Commands holds what the built-in commands read from.
type Commands struct {
	Transactions out.TransactionStore
	Charts       out.ChartRenderer
	Exporter     out.Exporter
	Clock        func() time.Time
	Location     *time.Location
}

// Register adds the built-in commands to reg.
func (c *Commands) Register(reg *command.Registry) {
	if c.Clock == nil {
		c.Clock = time.Now
	}
	if c.Location == nil {
		c.Location = time.Local
	}
	reg.RegisterAll(
		command.Descriptor{
			Key:         command.Literal("ajuda"),
			Aliases:     []string{"help", "comandos", "menu"},
			Description: "Mostra esta lista de comandos",
			Handler: func(ctx context.Context, req command.Request) (domain.Reply, error) {
				return domain.TextReply(command.HelpText(reg)), nil
			},
		},
		command.Descriptor{
			Key:         command.Literal("listar gastos"),
			Aliases:     []string{"despesas", "listar despesas", "listar pagamentos"},
			Description: "Lista os pagamentos do mês (ex: *listar gastos 05/24*)",
			Handler:     c.listHandler("Gastos", "Nenhum gasto registrado em %s.", domain.TransactionDebit),
		},
		command.Descriptor{
			Key:         command.Literal("listar recebimentos"),
			Aliases:     []string{"recebimentos", "receitas", "listar vendas"},
			Description: "Lista os recebimentos do mês",
			Handler:     c.listHandler("Recebimentos", "Nenhum recebimento registrado em %s.", domain.TransactionCredit),
		},
		command.Descriptor{
			Key:         command.Literal("extrato"),
			Aliases:     []string{"listar", "lançamentos", "lancamentos"},
			Description: "Lista todas as transações do mês",
			Handler:     c.listHandler("Extrato", "Nenhuma transação registrada em %s.", domain.TransactionDebit, domain.TransactionCredit),
		},
		command.Descriptor{
			Key:         command.Literal("saldo"),
			Aliases:     []string{"lucro", "caixa", "resumo"},
			Description: "Mostra recebimentos, pagamentos e lucro do mês",
			Handler:     c.balance,
		},
		command.Descriptor{
			Key:         command.Literal("grafico fluxo"),
			Aliases:     []string{"gráfico fluxo", "fluxo", "grafico"},
			Description: "Gera o gráfico de fluxo de caixa do mês",
			Handler:     c.chart,
		},
		command.Descriptor{
			Key:         command.Literal("exportar"),
			Aliases:     []string{"planilha", "exportar planilha"},
			Description: "Exporta as transações do mês em planilha",
			Handler:     c.export,
		},
		command.Descriptor{
			Key:         command.Literal("apagar"),
			Aliases:     []string{"desfazer"},
			Description: "Apaga a última transação registrada, ou a indicada (ex: *apagar wamid...*)",
			Handler:     c.deleteLast,
			Hidden:      true,
		},
		command.Descriptor{
			Key:         command.Pattern(`wamid\.\S+$`),
			Description: "Apaga a transação criada pela mensagem indicada",
			Handler:     c.deleteByReference,
			Hidden:      true,
		},
	)
}

func (c *Commands) interval(req command.Request) domain.Interval {
	if req.Interval != nil {
		return *req.Interval
	}
	return domain.CurrentMonth(c.Clock().In(c.Location))
}

func (c *Commands) listHandler(title, emptyFmt string, types ...domain.TransactionType) command.Handler {
	return func(ctx context.Context, req command.Request) (domain.Reply, error) {
		if req.User == nil {
			return domain.Reply{}, errNoUser
		}
		iv := c.interval(req)
		txs, err := c.Transactions.List(ctx, req.User.ID, types, iv)
		if err != nil {
			return domain.Reply{}, err
		}
		if len(txs) == 0 {
			return domain.TextReply(fmt.Sprintf(emptyFmt, iv.Label())), nil
		}
		totals := domain.SumTransactions(txs)
		total := totals.Debits
		switch {
		case len(types) > 1:
			total = totals.Balance()
		case types[0] == domain.TransactionCredit:
			total = totals.Credits
		}
		return domain.TextReply(listText(title, iv, txs, total)), nil
	}
}

func (c *Commands) balance(ctx context.Context, req command.Request) (domain.Reply, error) {
	if req.User == nil {
		return domain.Reply{}, errNoUser
	}
	iv := c.interval(req)
	txs, err := c.Transactions.List(ctx, req.User.ID, nil, iv)
	if err != nil {
		return domain.Reply{}, err
	}
	return domain.TextReply(balanceText(iv, domain.SumTransactions(txs))), nil
}

func (c *Commands) chart(ctx context.Context, req command.Request) (domain.Reply, error) {
	if req.User == nil {
		return domain.Reply{}, errNoUser
	}
	iv := c.interval(req)
	txs, err := c.Transactions.List(ctx, req.User.ID, nil, iv)
	if err != nil {
		return domain.Reply{}, err
	}
	if len(txs) == 0 {
		return domain.TextReply(fmt.Sprintf("Nenhuma transação em %s para montar o gráfico.", iv.Label())), nil
	}
	url, err := c.Charts.RenderCashFlow(ctx, req.User, iv, txs)
	if err != nil {
		return domain.Reply{}, err
	}
	return domain.TextReply(fmt.Sprintf("📈 Fluxo de caixa de %s:\n%s", iv.Label(), url)), nil
}

func (c *Commands) export(ctx context.Context, req command.Request) (domain.Reply, error) {
	if req.User == nil {
		return domain.Reply{}, errNoUser
	}
	iv := c.interval(req)
	txs, err := c.Transactions.List(ctx, req.User.ID, nil, iv)
	if err != nil {
		return domain.Reply{}, err
	}
	if len(txs) == 0 {
		return domain.TextReply(fmt.Sprintf("Nenhuma transação em %s para exportar.", iv.Label())), nil
	}
	url, err := c.Exporter.Export(ctx, req.User, iv, txs)
	if err != nil {
		return domain.Reply{}, err
	}
	return domain.TextReply(fmt.Sprintf("📄 Planilha de %s:\n%s", iv.Label(), url)), nil
}

func (c *Commands) deleteLast(ctx context.Context, req command.Request) (domain.Reply, error) {
	if req.User == nil {
		return domain.Reply{}, errNoUser
	}
	if len(req.Args) == 1 && domain.IsExternalMessageID(req.Args[0]) {
		return c.deleteByReference(ctx, req)
	}
	tx, err := c.Transactions.DeleteLast(ctx, req.User.ID)
	if err != nil {
		return domain.Reply{}, err
	}
	if tx == nil {
		return domain.TextReply("Você ainda não tem transações para apagar."), nil
	}
	return domain.TextReply(fmt.Sprintf("Transação apagada ✅\n%s", transactionLine(tx))), nil
}

func (c *Commands) deleteByReference(ctx context.Context, req command.Request) (domain.Reply, error) {
	if req.User == nil {
		return domain.Reply{}, errNoUser
	}
	if len(req.Args) == 0 {
		return domain.Reply{}, errors.New("missing message reference")
	}
	deleted, err := c.Transactions.DeleteByExternalID(ctx, req.User.ID, req.Args[0])
	if err != nil {
		return domain.Reply{}, err
	}
	if !deleted {
		return domain.TextReply("Não encontrei essa transação para apagar."), nil
	}
	return domain.TextReply("Transação apagada ✅"), nil
}
