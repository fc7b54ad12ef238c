//go:build ignore

// Package main generates a synthetic legal document corpus for exercising
// uploads without touching real client files.
// Usage: go run scripts/generate-test-corpus.go -files 50 -output testdata/corpus
//
// The output directory can be uploaded directly:
//
//	lexstore upload <store> testdata/corpus
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
)

var (
	numFiles  = flag.Int("files", 50, "Number of documents to generate")
	outputDir = flag.String("output", "testdata/corpus", "Output directory")
	seed      = flag.Int64("seed", 42, "Random seed for reproducibility")
)

var contrattoTemplate = `CONTRATTO DI %s

tra

%s, con sede legale in %s, Via %s n. %d, P.IVA %s, in persona del legale
rappresentante pro tempore (di seguito, il "Committente")

e

%s, con sede legale in %s, Via %s n. %d, P.IVA %s (di seguito, il
"Fornitore")

PREMESSO CHE

a) il Committente intende affidare al Fornitore le attivita' descritte al
   successivo art. 1;
b) il Fornitore dichiara di possedere l'organizzazione e le competenze
   necessarie all'esecuzione delle prestazioni oggetto del presente
   contratto;

tutto cio' premesso, le parti convengono quanto segue.

Art. 1 - Oggetto
Il Fornitore si obbliga a prestare in favore del Committente i servizi
di %s, secondo le specifiche concordate tra le parti.

Art. 2 - Durata
Il presente contratto ha durata di %d mesi a decorrere dal %s e si
intende tacitamente rinnovato per uguale periodo salvo disdetta da
comunicarsi con preavviso di 60 giorni.

Art. 3 - Corrispettivo
Per le prestazioni di cui all'art. 1 il Committente corrispondera' al
Fornitore l'importo di EUR %s oltre IVA, da versarsi a mezzo bonifico
bancario entro 30 giorni dalla data della fattura.

Art. 4 - Riservatezza
Ciascuna parte si impegna a mantenere riservate le informazioni di
natura tecnica o commerciale ricevute dall'altra parte in esecuzione
del presente contratto.

Art. 5 - Foro competente
Per ogni controversia derivante dal presente contratto sara' competente
in via esclusiva il Foro di %s.

%s, %s

Il Committente                         Il Fornitore
`

var attoTemplate = `TRIBUNALE ORDINARIO DI %s

ATTO DI CITAZIONE

Per il sig. %s %s, nato a %s, residente in %s, Via %s n. %d,
rappresentato e difeso, giusta procura in calce al presente atto,
dall'Avv. %s %s del Foro di %s, presso il cui studio elettivamente
domicilia;

- attore -

CONTRO

%s, con sede legale in %s, Via %s n. %d, P.IVA %s, in persona del
legale rappresentante pro tempore;

- convenuta -

FATTO

1. In data %s le parti sottoscrivevano un contratto avente ad oggetto
   %s.
2. Nonostante i ripetuti solleciti, la convenuta non adempiva alle
   obbligazioni assunte, rendendosi inadempiente per l'importo di
   EUR %s.
3. Il tentativo di composizione bonaria esperito dall'attore non sortiva
   alcun esito.

DIRITTO

L'inadempimento della convenuta integra i presupposti di cui agli artt.
1218 e ss. c.c., con conseguente diritto dell'attore al risarcimento
del danno patito.

P.Q.M.

Voglia l'Ill.mo Tribunale adito, contrariis reiectis, accertare e
dichiarare l'inadempimento della convenuta e, per l'effetto, condannarla
al pagamento in favore dell'attore della somma di EUR %s, oltre
interessi legali dalla domanda al saldo, con vittoria di spese e
compensi di lite.

%s, %s

Avv. %s %s
`

var sentenzaTemplate = `REPUBBLICA ITALIANA
IN NOME DEL POPOLO ITALIANO

TRIBUNALE DI %s
SEZIONE %s CIVILE

Il Giudice, dott. %s %s, ha pronunciato la seguente

SENTENZA n. %d/%d

nella causa civile di primo grado iscritta al n. %d/%d R.G., promossa da
%s %s (attore), rappresentato e difeso dall'Avv. %s %s, contro %s
(convenuta), avente ad oggetto: %s.

SVOLGIMENTO DEL PROCESSO

Con atto di citazione ritualmente notificato, l'attore conveniva in
giudizio la convenuta chiedendone la condanna al pagamento di EUR %s a
titolo di %s. Si costituiva la convenuta contestando la domanda e
chiedendone il rigetto. La causa, istruita documentalmente, veniva
trattenuta in decisione all'udienza del %s.

MOTIVI DELLA DECISIONE

La domanda attorea e' fondata e merita accoglimento. Dalla
documentazione in atti risulta provato il titolo posto a fondamento
della pretesa, ne' la convenuta ha fornito prova dell'esatto
adempimento, come era suo onere ai sensi dell'art. 2697 c.c.

P.Q.M.

Il Tribunale, definitivamente pronunciando, ogni altra istanza disattesa,
condanna la convenuta al pagamento in favore dell'attore della somma di
EUR %s, oltre interessi legali dalla domanda al saldo, nonche' alla
rifusione delle spese di lite, liquidate in EUR %s per compensi, oltre
accessori di legge.

%s, %s

Il Giudice
dott. %s %s
`

var fatturaTemplate = `FATTURA n. %d/%d
Data: %s

Studio Legale %s e Associati
Via %s n. %d, %s
P.IVA %s

Spett.le
%s
Via %s n. %d, %s
P.IVA %s

Oggetto: pratica %s

Descrizione                                               Importo
-----------------------------------------------------------------
Assistenza legale in materia di %s                    EUR %s
Competenze professionali di cui al D.M. 55/2014       EUR %s
Spese generali (15%%)                                  EUR %s
-----------------------------------------------------------------
Imponibile                                            EUR %s
Contributo CPA (4%%)                                   EUR %s
IVA (22%%)                                             EUR %s
-----------------------------------------------------------------
TOTALE FATTURA                                        EUR %s

Pagamento: bonifico bancario a 30 giorni data fattura.
`

var notaTemplate = `# Nota interna - pratica %s

**Data:** %s
**Redattore:** Avv. %s %s
**Cliente:** %s

## Sintesi

Aggiornamento sulla pratica in materia di %s. La controparte (%s) ha
riscontrato la nostra ultima comunicazione; restano da definire gli
aspetti economici.

## Attivita' svolte

- Esame della documentazione trasmessa dal cliente
- Redazione della bozza di %s
- Interlocuzione telefonica con la controparte in data %s

## Prossimi passi

- Trasmettere la bozza rivista al cliente entro il %s
- Verificare i termini di decadenza ex art. 2964 c.c.
- Fissare incontro con la controparte

## Valutazione

Prospettive di definizione stragiudiziale: buone. Valore stimato della
pratica: EUR %s.
`

// Word pools for generating plausible Italian names
var (
	cognomi = []string{
		"Rossi", "Bianchi", "Ferrari", "Russo", "Esposito",
		"Colombo", "Ricci", "Marino", "Greco", "Bruno",
		"Gallo", "Conti", "De Luca", "Costa", "Fontana",
	}
	nomi = []string{
		"Marco", "Giulia", "Andrea", "Francesca", "Luca",
		"Elena", "Paolo", "Chiara", "Stefano", "Valentina",
	}
	societa = []string{
		"Alfa Costruzioni Srl", "Beta Impianti SpA", "Gamma Logistica Srl",
		"Delta Servizi Srl", "Omega Immobiliare SpA", "Nuova Edilizia Srl",
		"Tecnoservice Srl", "Italforniture SpA", "Progetto Casa Srl",
	}
	citta = []string{
		"Milano", "Roma", "Torino", "Bologna", "Firenze",
		"Napoli", "Padova", "Verona", "Genova", "Brescia",
	}
	vie = []string{
		"Garibaldi", "Dante", "Mazzini", "Cavour", "Verdi",
		"Manzoni", "Roma", "XX Settembre", "della Liberta'", "San Marco",
	}
	materie = []string{
		"appalto di servizi", "fornitura continuativa", "locazione commerciale",
		"consulenza tecnica", "distribuzione commerciale", "subfornitura",
	}
	oggettiCausa = []string{
		"inadempimento contrattuale", "risarcimento danni",
		"pagamento di somma di denaro", "sfratto per morosita'",
		"opposizione a decreto ingiuntivo",
	}
	sezioni = []string{"PRIMA", "SECONDA", "TERZA", "QUARTA"}
)

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		os.Exit(1)
	}

	// Create one subdirectory per document type
	subdirs := []string{"contratti", "atti", "sentenze", "fatture", "note"}
	for _, subdir := range subdirs {
		if err := os.MkdirAll(filepath.Join(*outputDir, subdir), 0755); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating subdirectory %s: %v\n", subdir, err)
			os.Exit(1)
		}
	}

	fmt.Printf("Generating %d documents in %s...\n", *numFiles, *outputDir)

	// Distribute documents across types
	contratti := *numFiles * 25 / 100
	atti := *numFiles * 20 / 100
	sentenze := *numFiles * 15 / 100
	fatture := *numFiles * 20 / 100
	note := *numFiles - contratti - atti - sentenze - fatture

	generated := 0

	for i := 0; i < contratti; i++ {
		if err := generateContratto(rng, i); err != nil {
			fmt.Fprintf(os.Stderr, "Error generating contratto %d: %v\n", i, err)
		}
		generated++
	}

	for i := 0; i < atti; i++ {
		if err := generateAtto(rng, i); err != nil {
			fmt.Fprintf(os.Stderr, "Error generating atto %d: %v\n", i, err)
		}
		generated++
	}

	for i := 0; i < sentenze; i++ {
		if err := generateSentenza(rng, i); err != nil {
			fmt.Fprintf(os.Stderr, "Error generating sentenza %d: %v\n", i, err)
		}
		generated++
	}

	for i := 0; i < fatture; i++ {
		if err := generateFattura(rng, i); err != nil {
			fmt.Fprintf(os.Stderr, "Error generating fattura %d: %v\n", i, err)
		}
		generated++
	}

	for i := 0; i < note; i++ {
		if err := generateNota(rng, i); err != nil {
			fmt.Fprintf(os.Stderr, "Error generating nota %d: %v\n", i, err)
		}
		generated++
	}

	fmt.Printf("Generated %d documents successfully.\n", generated)
}

func pick(rng *rand.Rand, pool []string) string {
	return pool[rng.Intn(len(pool))]
}

func randomPIVA(rng *rand.Rand) string {
	digits := make([]byte, 11)
	for i := range digits {
		digits[i] = byte('0' + rng.Intn(10))
	}
	return string(digits)
}

func randomDate(rng *rand.Rand) string {
	year := 2022 + rng.Intn(4)
	month := 1 + rng.Intn(12)
	day := 1 + rng.Intn(28)
	return fmt.Sprintf("%02d/%02d/%d", day, month, year)
}

func randomAmount(rng *rand.Rand, min, max int) string {
	euros := min + rng.Intn(max-min)
	return fmt.Sprintf("%d.%03d,00", euros/1000, euros%1000)
}

func generateContratto(rng *rand.Rand, index int) error {
	materia := pick(rng, materie)
	content := fmt.Sprintf(contrattoTemplate,
		"APPALTO DI SERVIZI",
		pick(rng, societa), pick(rng, citta), pick(rng, vie), 1+rng.Intn(99), randomPIVA(rng),
		pick(rng, societa), pick(rng, citta), pick(rng, vie), 1+rng.Intn(99), randomPIVA(rng),
		materia,
		12+rng.Intn(36), randomDate(rng),
		randomAmount(rng, 10000, 200000),
		pick(rng, citta),
		pick(rng, citta), randomDate(rng),
	)

	filename := filepath.Join(*outputDir, "contratti",
		fmt.Sprintf("contratto_%03d.txt", index))
	return os.WriteFile(filename, []byte(content), 0644)
}

func generateAtto(rng *rand.Rand, index int) error {
	avvNome, avvCognome := pick(rng, nomi), pick(rng, cognomi)
	citta1 := pick(rng, citta)
	importo := randomAmount(rng, 5000, 100000)
	content := fmt.Sprintf(attoTemplate,
		citta1,
		pick(rng, nomi), pick(rng, cognomi), pick(rng, citta), pick(rng, citta),
		pick(rng, vie), 1+rng.Intn(99),
		avvNome, avvCognome, citta1,
		pick(rng, societa), pick(rng, citta), pick(rng, vie), 1+rng.Intn(99), randomPIVA(rng),
		randomDate(rng),
		pick(rng, materie),
		importo,
		importo,
		citta1, randomDate(rng),
		avvNome, avvCognome,
	)

	filename := filepath.Join(*outputDir, "atti",
		fmt.Sprintf("atto_citazione_%03d.txt", index))
	return os.WriteFile(filename, []byte(content), 0644)
}

func generateSentenza(rng *rand.Rand, index int) error {
	giudiceNome, giudiceCognome := pick(rng, nomi), pick(rng, cognomi)
	anno := 2022 + rng.Intn(4)
	importo := randomAmount(rng, 5000, 150000)
	oggetto := pick(rng, oggettiCausa)
	content := fmt.Sprintf(sentenzaTemplate,
		pick(rng, citta), pick(rng, sezioni),
		giudiceNome, giudiceCognome,
		100+rng.Intn(9000), anno,
		100+rng.Intn(9000), anno,
		pick(rng, nomi), pick(rng, cognomi), pick(rng, nomi), pick(rng, cognomi),
		pick(rng, societa), oggetto,
		importo, oggetto, randomDate(rng),
		importo, randomAmount(rng, 2000, 10000),
		pick(rng, citta), randomDate(rng),
		giudiceNome, giudiceCognome,
	)

	filename := filepath.Join(*outputDir, "sentenze",
		fmt.Sprintf("sentenza_%03d.txt", index))
	return os.WriteFile(filename, []byte(content), 0644)
}

func generateFattura(rng *rand.Rand, index int) error {
	anno := 2022 + rng.Intn(4)
	content := fmt.Sprintf(fatturaTemplate,
		1+index, anno, randomDate(rng),
		pick(rng, cognomi), pick(rng, vie), 1+rng.Intn(99), pick(rng, citta), randomPIVA(rng),
		pick(rng, societa), pick(rng, vie), 1+rng.Intn(99), pick(rng, citta), randomPIVA(rng),
		fmt.Sprintf("%04d/%d", 1+rng.Intn(500), anno),
		pick(rng, materie), randomAmount(rng, 1000, 15000),
		randomAmount(rng, 500, 5000),
		randomAmount(rng, 100, 2000),
		randomAmount(rng, 2000, 20000),
		randomAmount(rng, 80, 800),
		randomAmount(rng, 400, 4500),
		randomAmount(rng, 3000, 25000),
	)

	filename := filepath.Join(*outputDir, "fatture",
		fmt.Sprintf("fattura_%03d.txt", index))
	return os.WriteFile(filename, []byte(content), 0644)
}

func generateNota(rng *rand.Rand, index int) error {
	anno := 2022 + rng.Intn(4)
	content := fmt.Sprintf(notaTemplate,
		fmt.Sprintf("%04d/%d", 1+rng.Intn(500), anno),
		randomDate(rng),
		pick(rng, nomi), pick(rng, cognomi),
		pick(rng, societa),
		pick(rng, materie), pick(rng, societa),
		pick(rng, materie), randomDate(rng),
		randomDate(rng),
		randomAmount(rng, 5000, 80000),
	)

	filename := filepath.Join(*outputDir, "note",
		fmt.Sprintf("nota_%03d.md", index))
	return os.WriteFile(filename, []byte(content), 0644)
}
